package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

// getOrCreateShelf inserts the shelf unless the name exists and returns the stored row.
func getOrCreateShelf(ctx context.Context, q querier, name string) (*domain.LibraryShelf, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidInput.WithMessage("shelf name is required")
	}

	if _, err := q.ExecContext(ctx,
		`INSERT INTO shelves (shelf_name) VALUES (?) ON CONFLICT(shelf_name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("insert shelf: %w", err)
	}

	var sh domain.LibraryShelf
	err := q.QueryRowContext(ctx,
		`SELECT id, shelf_name FROM shelves WHERE shelf_name = ?`, name).Scan(&sh.ID, &sh.Name)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// GetOrCreateShelf returns the shelf named name, creating it if needed.
func (s *Store) GetOrCreateShelf(ctx context.Context, name string) (*domain.LibraryShelf, error) {
	return getOrCreateShelf(ctx, s.db, name)
}

// GetShelf retrieves a shelf by ID.
func (s *Store) GetShelf(ctx context.Context, id int64) (*domain.LibraryShelf, error) {
	var sh domain.LibraryShelf
	err := s.db.QueryRowContext(ctx,
		`SELECT id, shelf_name FROM shelves WHERE id = ?`, id).Scan(&sh.ID, &sh.Name)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// ListShelves returns all shelves ordered by name.
func (s *Store) ListShelves(ctx context.Context) ([]*domain.LibraryShelf, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, shelf_name FROM shelves ORDER BY shelf_name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shelves := []*domain.LibraryShelf{}
	for rows.Next() {
		var sh domain.LibraryShelf
		if err := rows.Scan(&sh.ID, &sh.Name); err != nil {
			return nil, err
		}
		shelves = append(shelves, &sh)
	}
	return shelves, rows.Err()
}
