package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/librisapp/libris-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// insertTestUser creates a user with the given ID.
func insertTestUser(t *testing.T, s *Store, id string) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{
		Timestamps:   domain.Timestamps{CreatedAt: now, UpdatedAt: now},
		ID:           id,
		Username:     id,
		Email:        id + "@example.com",
		PasswordHash: "$argon2id$fake",
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("insertTestUser(%s): %v", id, err)
	}
	return u
}

// insertTestPublication creates a publication with a single writer and returns its ID.
func insertTestPublication(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	p := &domain.Publication{
		Title:   title,
		Writers: []domain.Writer{{GivenName: "Test", Surname: "Writer"}},
	}
	if err := s.CreatePublication(context.Background(), p); err != nil {
		t.Fatalf("insertTestPublication(%s): %v", title, err)
	}
	return p.ID
}

// insertTestPublications creates n publications and returns their IDs in order.
func insertTestPublications(t *testing.T, s *Store, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range n {
		ids[i] = insertTestPublication(t, s, fmt.Sprintf("Publication %d", i+1))
	}
	return ids
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	tables := []string{
		"users", "sessions", "publications", "writers", "publication_writers",
		"shelves", "publication_shelves", "favorites", "similarities", "similarity_imports",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	var idx string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_similarities_origin_score'").Scan(&idx)
	if err != nil {
		t.Errorf("similarity origin/score index missing: %v", err)
	}
}

func TestOpenReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	insertTestPublication(t, s, "Persisted")
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s2.Close()

	st, err := s2.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Publications != 1 {
		t.Errorf("Publications: got %d, want 1", st.Publications)
	}
}

func TestStatsAndPing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	insertTestUser(t, s, "usr-stats")
	ids := insertTestPublications(t, s, 2)
	if _, err := s.AddFavorite(ctx, "usr-stats", ids[0], 20); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Users != 1 || st.Publications != 2 || st.Writers != 1 || st.Favorites != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}
