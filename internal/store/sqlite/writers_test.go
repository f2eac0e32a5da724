package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

func TestCreateAndGetWriter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := &domain.Writer{GivenName: "Octavia", Surname: "Butler", BirthDate: "1947-06-22"}
	if err := s.CreateWriter(ctx, w); err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	got, err := s.GetWriter(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWriter: %v", err)
	}
	if got.GivenName != "Octavia" || got.Surname != "Butler" || got.BirthDate != "1947-06-22" {
		t.Errorf("got %+v", got)
	}

	dup := &domain.Writer{GivenName: "octavia", Surname: "BUTLER"}
	if err := s.CreateWriter(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate CreateWriter: got %v, want ErrAlreadyExists", err)
	}
}

func TestCreateWriter_RequiresBothNames(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateWriter(context.Background(), &domain.Writer{GivenName: "Homer"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestGetOrCreateWriter_NaturalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreateWriter(ctx, &domain.Writer{GivenName: "Gabriel", Surname: "García Márquez"})
	if err != nil {
		t.Fatalf("GetOrCreateWriter: %v", err)
	}
	second, err := s.GetOrCreateWriter(ctx, &domain.Writer{GivenName: "gabriel", Surname: "Garcia  Marquez"})
	if err != nil {
		t.Fatalf("GetOrCreateWriter: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same writer, got %d and %d", first.ID, second.ID)
	}
	if second.Surname != "García Márquez" {
		t.Errorf("expected stored spelling to win, got %q", second.Surname)
	}
}

func TestGetOrCreateWriter_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[int64]bool{}
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := s.GetOrCreateWriter(ctx, &domain.Writer{GivenName: "Ann", Surname: "Leckie"})
			if err != nil {
				t.Errorf("GetOrCreateWriter: %v", err)
				return
			}
			mu.Lock()
			ids[w.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != 1 {
		t.Errorf("expected a single surviving writer, got %v", ids)
	}
}

func TestUpdateAndDeleteWriter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := &domain.Writer{GivenName: "Iain", Surname: "Banks"}
	if err := s.CreateWriter(ctx, w); err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	w.GivenName = "Iain M."
	if err := s.UpdateWriter(ctx, w); err != nil {
		t.Fatalf("UpdateWriter: %v", err)
	}
	got, _ := s.GetWriter(ctx, w.ID)
	if got.GivenName != "Iain M." {
		t.Errorf("GivenName: got %q", got.GivenName)
	}

	if err := s.DeleteWriter(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWriter: %v", err)
	}
	if _, err := s.GetWriter(ctx, w.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetWriter after delete: got %v", err)
	}
	if err := s.DeleteWriter(ctx, w.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteWriter: got %v", err)
	}
}

func TestListWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"Adams", "Banks", "Clarke"} {
		if err := s.CreateWriter(ctx, &domain.Writer{GivenName: "A.", Surname: name}); err != nil {
			t.Fatalf("CreateWriter(%s): %v", name, err)
		}
	}

	page, err := s.ListWriters(ctx, store.PaginationParams{Limit: 2})
	if err != nil {
		t.Fatalf("ListWriters: %v", err)
	}
	if len(page.Items) != 2 || !page.HasMore || page.Total != 3 {
		t.Fatalf("page: %d items, hasMore=%v, total=%d", len(page.Items), page.HasMore, page.Total)
	}

	rest, err := s.ListWriters(ctx, store.PaginationParams{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("ListWriters page 2: %v", err)
	}
	if len(rest.Items) != 1 || rest.Items[0].Surname != "Clarke" || rest.HasMore {
		t.Errorf("page 2: got %+v", rest.Items)
	}
}

func TestShelves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.GetOrCreateShelf(ctx, "poetry")
	if err != nil {
		t.Fatalf("GetOrCreateShelf: %v", err)
	}
	b, err := s.GetOrCreateShelf(ctx, "  poetry ")
	if err != nil {
		t.Fatalf("GetOrCreateShelf: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("expected same shelf, got %d and %d", a.ID, b.ID)
	}
	if _, err := s.GetOrCreateShelf(ctx, "drama"); err != nil {
		t.Fatalf("GetOrCreateShelf: %v", err)
	}
	if _, err := s.GetOrCreateShelf(ctx, " "); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("blank shelf: got %v, want ErrInvalidInput", err)
	}

	shelves, err := s.ListShelves(ctx)
	if err != nil {
		t.Fatalf("ListShelves: %v", err)
	}
	if len(shelves) != 2 || shelves[0].Name != "drama" || shelves[1].Name != "poetry" {
		t.Errorf("shelves: got %+v", shelves)
	}

	got, err := s.GetShelf(ctx, a.ID)
	if err != nil || got.Name != "poetry" {
		t.Errorf("GetShelf: got %+v, %v", got, err)
	}
	if _, err := s.GetShelf(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetShelf missing: got %v", err)
	}
}
