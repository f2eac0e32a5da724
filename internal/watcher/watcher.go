// Package watcher reports files that land in a directory once they stop
// changing. It watches a single flat directory; subdirectories are ignored.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is a settled file.
type Event struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type pending struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// Watcher debounces fsnotify events for one directory.
type Watcher struct {
	dir     string
	opts    Options
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
	events  chan Event
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]*pending

	stopOnce sync.Once
}

// New creates a watcher for dir, creating the directory if needed.
func New(dir string, opts Options, logger *slog.Logger) (*Watcher, error) {
	opts.setDefaults()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:     filepath.Clean(dir),
		opts:    opts,
		logger:  logger,
		fsw:     fsw,
		events:  make(chan Event, 32),
		errs:    make(chan error, 8),
		done:    make(chan struct{}),
		pending: make(map[string]*pending),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Events delivers settled files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors delivers watcher errors. It is never closed before Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start queues files already present in the directory and then processes
// notifications until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.settle(filepath.Join(w.dir, e.Name()))
		}
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
				w.logger.Warn("dropping watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.settle(ev.Name)
	}
}

// settle (re)starts the quiet-period timer for path.
func (w *Watcher) settle(path string) {
	if !w.opts.accepts(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	p := &pending{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.check(path) })
	w.pending[path] = p
}

// check emits path if it has not changed since the timer started.
func (w *Watcher) check(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size, p.modTime = info.Size(), info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.check(path) })
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case w.events <- Event{Path: path, Size: info.Size(), ModTime: info.ModTime()}:
	case <-w.done:
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// Stop releases the fsnotify handle and pending timers. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, p := range w.pending {
			p.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fsw.Close()
		w.wg.Wait()
	})
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
