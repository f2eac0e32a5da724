package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, opts Options) *Watcher {
	t.Helper()
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 50 * time.Millisecond
	}
	w, err := New(t.TempDir(), opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(wait):
	}
}

func TestOptions_Accepts(t *testing.T) {
	opts := Options{Extensions: []string{".CSV", ".jsonl"}}
	opts.setDefaults()

	assert.True(t, opts.accepts("/drop/edges.csv"))
	assert.True(t, opts.accepts("/drop/edges.jsonl"))
	assert.False(t, opts.accepts("/drop/edges.txt"))
	assert.False(t, opts.accepts("/drop/.edges.csv"))
	assert.False(t, opts.accepts("/drop/edges.csv.imported"))
	assert.False(t, opts.accepts("/drop/edges.tmp"))

	all := Options{}
	all.setDefaults()
	assert.True(t, all.accepts("/drop/anything.bin"))
	assert.Equal(t, 2*time.Second, all.SettleDelay)
}

func TestWatcher_EmitsSettledFile(t *testing.T) {
	w := newTestWatcher(t, Options{Extensions: []string{".csv"}})
	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(w.Dir(), "edges.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2,0.5\n"), 0o600))

	ev := waitEvent(t, w)
	assert.Equal(t, path, ev.Path)
	assert.Equal(t, int64(8), ev.Size)
}

func TestWatcher_IgnoresFilteredFiles(t *testing.T) {
	w := newTestWatcher(t, Options{Extensions: []string{".csv"}})
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(w.Dir(), "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(w.Dir(), "edges.csv.part"), []byte("x"), 0o600))

	assertNoEvent(t, w, 300*time.Millisecond)
}

func TestWatcher_PicksUpExistingFiles(t *testing.T) {
	w := newTestWatcher(t, Options{})
	path := filepath.Join(w.Dir(), "already-here.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, path, waitEvent(t, w).Path)
}

func TestWatcher_RemovedBeforeSettling(t *testing.T) {
	w := newTestWatcher(t, Options{SettleDelay: 300 * time.Millisecond})
	require.NoError(t, w.Start(context.Background()))

	path := filepath.Join(w.Dir(), "gone.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2,0.5\n"), 0o600))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.Remove(path))

	assertNoEvent(t, w, 600*time.Millisecond)
}

func TestWatcher_StopTwice(t *testing.T) {
	w := newTestWatcher(t, Options{})
	require.NoError(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
