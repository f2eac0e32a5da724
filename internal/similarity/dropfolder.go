package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/watcher"
)

// Suffixes appended to processed drop-folder files.
const (
	ImportedSuffix = ".imported"
	FailedSuffix   = ".failed"
)

// DropExtensions are the file extensions the drop folder accepts.
var DropExtensions = []string{".csv", ".tsv", ".jsonl", ".ndjson"}

// ImportFile imports the file at path, detecting the format from its name
// unless format is set.
func (im *Importer) ImportFile(ctx context.Context, path string, format Format, opts Options) (*domain.SimilarityImport, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return im.Import(ctx, filepath.Base(path), f, format, opts)
}

// DropFolder imports files as they settle in a watched directory. Each file
// is renamed with ImportedSuffix or FailedSuffix afterwards so it is not
// picked up again.
type DropFolder struct {
	importer *Importer
	watcher  *watcher.Watcher
	opts     Options
	logger   *slog.Logger
}

// NewDropFolder watches dir for similarity files.
func NewDropFolder(importer *Importer, dir string, opts Options, settle watcher.Options, logger *slog.Logger) (*DropFolder, error) {
	settle.Extensions = DropExtensions
	w, err := watcher.New(dir, settle, logger.With("component", "watcher"))
	if err != nil {
		return nil, err
	}
	return &DropFolder{importer: importer, watcher: w, opts: opts, logger: logger}, nil
}

// Dir returns the watched directory.
func (d *DropFolder) Dir() string {
	return d.watcher.Dir()
}

// Run imports files until ctx is canceled.
func (d *DropFolder) Run(ctx context.Context) error {
	if err := d.watcher.Start(ctx); err != nil {
		return err
	}
	defer d.watcher.Stop()

	d.logger.Info("watching similarity drop folder", "dir", d.watcher.Dir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-d.watcher.Errors():
			d.logger.Warn("drop folder watch error", "error", err)
		case ev := <-d.watcher.Events():
			d.process(ctx, ev.Path)
		}
	}
}

func (d *DropFolder) process(ctx context.Context, path string) {
	suffix := ImportedSuffix
	if _, err := d.importer.ImportFile(ctx, path, "", d.opts); err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Error("drop folder import failed", "file", path, "error", err)
		suffix = FailedSuffix
	}
	if err := os.Rename(path, path+suffix); err != nil {
		d.logger.Warn("failed to mark processed file", "file", path, "error", err)
	}
}

// Close stops watching. Run also stops the watcher when its context ends.
func (d *DropFolder) Close() error {
	return d.watcher.Stop()
}
