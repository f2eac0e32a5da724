package search

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// mappingVersion changes whenever buildIndexMapping does; an index written
// with another version is rebuilt on open.
const mappingVersion = "libris-1"

const batchSize = 500

// Index wraps a Bleve index. All methods are safe for concurrent use;
// Rebuild takes an exclusive lock.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string // empty for in-memory indexes
	logger *slog.Logger
}

// Options configures Open.
type Options struct {
	// Path is the index directory. Empty means an in-memory index.
	Path   string
	Logger *slog.Logger
}

// Open opens the index at opts.Path, creating it when missing and
// recreating it when the mapping version changed or it cannot be opened.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.Path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}

	versionPath := opts.Path + ".version"
	exists := false
	rebuild := false
	if _, err := os.Stat(opts.Path); err == nil {
		exists = true
		//#nosec G304 -- path comes from configuration
		v, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(v) != mappingVersion {
			logger.Info("search index mapping changed, rebuilding",
				"old_version", string(v),
				"new_version", mappingVersion,
			)
			rebuild = true
		}
	}

	var idx bleve.Index
	if exists && !rebuild {
		opened, err := bleve.Open(opts.Path)
		if err != nil {
			logger.Warn("failed to open search index, recreating", "path", opts.Path, "error", err)
			rebuild = true
		} else {
			idx = opened
		}
	}

	if idx == nil {
		if rebuild {
			if err := os.RemoveAll(opts.Path); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
			return nil, fmt.Errorf("create index parent: %w", err)
		}
		created, err := bleve.New(opts.Path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		idx = created
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o600); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", opts.Path, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened search index", "path", opts.Path)
	}

	return &Index{index: idx, path: opts.Path, logger: logger}, nil
}

// Close closes the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Put indexes or replaces one document.
func (s *Index) Put(doc *Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.toMap())
}

// PutAll indexes documents in batches.
func (s *Index) PutAll(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.toMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Delete removes a document. Deleting an unknown ID is not an error.
func (s *Index) Delete(docID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(docID)
}

// Count returns the number of indexed documents.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild replaces the index contents with docs.
func (s *Index) Rebuild(docs []*Document) error {
	if err := s.reset(); err != nil {
		return err
	}
	if err := s.PutAll(docs); err != nil {
		return err
	}
	s.logger.Info("rebuilt search index", "documents", len(docs))
	return nil
}

// reset swaps the current index for an empty one.
func (s *Index) reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		idx bleve.Index
		err error
	)
	if s.path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err = os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		idx, err = bleve.New(s.path, buildIndexMapping())
		if err == nil {
			if werr := os.WriteFile(s.path+".version", []byte(mappingVersion), 0o600); werr != nil {
				s.logger.Warn("failed to write search version file", "error", werr)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = idx
	return nil
}
