// Package similarity ingests precomputed publication similarity edges.
//
// Edges come from an offline job as CSV, TSV or JSON lines. The importer
// validates them, optionally writes each pair in both directions, and
// replaces existing scores in a single transaction.
package similarity

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/id"
	"github.com/librisapp/libris-server/internal/metrics"
)

// existenceChecks bounds concurrent publication lookups.
const existenceChecks = 8

// ErrInvalidScore is returned for NaN, infinite or negative scores.
var ErrInvalidScore = errors.New("score must be a finite non-negative number")

// ErrUnknownPublication is returned in strict mode for edges that reference
// a publication missing from the catalog.
var ErrUnknownPublication = errors.New("unknown publication")

// Store is the persistence the importer needs.
type Store interface {
	PublicationExists(ctx context.Context, id int64) (bool, error)
	UpsertSimilarities(ctx context.Context, edges []domain.SimilarityEdge) (int, error)
	CreateSimilarityImport(ctx context.Context, imp *domain.SimilarityImport) error
	FinishSimilarityImport(ctx context.Context, imp *domain.SimilarityImport) error
}

// Invalidator drops cached rankings after the graph changed.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

// Options tunes an import.
type Options struct {
	// Symmetrize writes B->A for every A->B. When both directions are
	// supplied the larger score wins for both.
	Symmetrize bool
	// Strict fails the import on edges that reference unknown publications
	// instead of skipping them.
	Strict bool
}

// Importer loads similarity files into the store.
type Importer struct {
	store       Store
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewImporter creates an importer. invalidator may be nil.
func NewImporter(store Store, invalidator Invalidator, logger *slog.Logger) *Importer {
	return &Importer{store: store, invalidator: invalidator, logger: logger, now: time.Now}
}

// Import parses r and writes its edges. source labels the run in the import
// history (usually the file name).
func (im *Importer) Import(ctx context.Context, source string, r io.Reader, format Format, opts Options) (*domain.SimilarityImport, error) {
	run := &domain.SimilarityImport{
		ID:          id.NewBatchID(),
		Source:      source,
		Symmetrized: opts.Symmetrize,
		StartedAt:   im.now(),
	}
	if err := im.store.CreateSimilarityImport(ctx, run); err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}

	err := im.run(ctx, run, r, format, opts)
	finished := im.now()
	run.FinishedAt = &finished
	if ferr := im.store.FinishSimilarityImport(ctx, run); ferr != nil {
		im.logger.Warn("failed to finish import record", "import_id", run.ID, "error", ferr)
	}
	metrics.RecordImport(run.EdgeCount, err)

	if err != nil {
		im.logger.Error("similarity import failed", "import_id", run.ID, "source", source, "error", err)
		return run, err
	}

	if im.invalidator != nil && run.EdgeCount > 0 {
		im.invalidator.InvalidateAll(ctx)
	}
	im.logger.Info("similarity import finished",
		"import_id", run.ID,
		"source", source,
		"edges", run.EdgeCount,
		"skipped", run.Skipped,
		"took", finished.Sub(run.StartedAt),
	)
	return run, nil
}

func (im *Importer) run(ctx context.Context, run *domain.SimilarityImport, r io.Reader, format Format, opts Options) error {
	parsed, err := Parse(r, format)
	if err != nil {
		return err
	}

	edges, skipped, err := Prepare(parsed, opts.Symmetrize)
	if err != nil {
		return err
	}
	run.Skipped = skipped

	known, err := im.knownPublications(ctx, edges)
	if err != nil {
		return err
	}
	kept := edges[:0]
	for _, e := range edges {
		if known[e.Origin] && known[e.Destination] {
			kept = append(kept, e)
			continue
		}
		if opts.Strict {
			return fmt.Errorf("%w: edge %d->%d", ErrUnknownPublication, e.Origin, e.Destination)
		}
		run.Skipped++
	}

	written, err := im.store.UpsertSimilarities(ctx, kept)
	if err != nil {
		return fmt.Errorf("write edges: %w", err)
	}
	run.EdgeCount = written
	return nil
}

// knownPublications checks every distinct publication ID concurrently.
func (im *Importer) knownPublications(ctx context.Context, edges []domain.SimilarityEdge) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, e := range edges {
		ids[e.Origin] = false
		ids[e.Destination] = false
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(existenceChecks)
	for _, pubID := range slices.Sorted(maps.Keys(ids)) {
		g.Go(func() error {
			ok, err := im.store.PublicationExists(gctx, pubID)
			if err != nil {
				return fmt.Errorf("check publication %d: %w", pubID, err)
			}
			mu.Lock()
			ids[pubID] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Prepare validates edges, drops self-loops (counted as skipped) and
// collapses duplicates. With symmetrize, each unordered pair is written in
// both directions with the larger of the supplied scores. Output is sorted
// by origin then destination.
func Prepare(edges []domain.SimilarityEdge, symmetrize bool) ([]domain.SimilarityEdge, int, error) {
	type pair struct{ origin, destination int64 }

	scores := make(map[pair]float64, len(edges))
	skipped := 0
	put := func(p pair, score float64) {
		if cur, ok := scores[p]; !ok || score > cur {
			scores[p] = score
		}
	}

	for i, e := range edges {
		if !e.ValidScore() {
			return nil, 0, fmt.Errorf("edge %d (%d->%d): %w", i+1, e.Origin, e.Destination, ErrInvalidScore)
		}
		if e.IsSelfLoop() {
			skipped++
			continue
		}
		if symmetrize {
			a, b := e.Origin, e.Destination
			if a > b {
				a, b = b, a
			}
			put(pair{a, b}, e.Score)
			continue
		}
		// Later rows override earlier ones for the same directed pair.
		scores[pair{e.Origin, e.Destination}] = e.Score
	}

	out := make([]domain.SimilarityEdge, 0, len(scores)*2)
	for p, s := range scores {
		edge := domain.SimilarityEdge{Origin: p.origin, Destination: p.destination, Score: s}
		out = append(out, edge)
		if symmetrize {
			out = append(out, edge.Reverse())
		}
	}
	slices.SortFunc(out, func(a, b domain.SimilarityEdge) int {
		return cmp.Or(cmp.Compare(a.Origin, b.Origin), cmp.Compare(a.Destination, b.Destination))
	})
	return out, skipped, nil
}
