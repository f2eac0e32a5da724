package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/normalize"
	"github.com/librisapp/libris-server/internal/store"
)

// writerColumns must match the scan order in scanWriter.
const writerColumns = `w.id, w.given_name, w.surname, w.birth_date`

// scanWriter scans a writer row. Extra destinations for leading columns
// (e.g. a join key) are passed in prefix.
func scanWriter(scanner interface{ Scan(dest ...any) error }, prefix ...any) (*domain.Writer, error) {
	var (
		w         domain.Writer
		birthDate sql.NullString
	)
	dest := append(prefix, &w.ID, &w.GivenName, &w.Surname, &birthDate)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	w.BirthDate = birthDate.String
	return &w, nil
}

// writerKey is the natural key of a writer: folded given name and surname.
func writerKey(given, surname string) string {
	return normalize.NameKey(given) + "|" + normalize.NameKey(surname)
}

func validWriter(w *domain.Writer) bool {
	return strings.TrimSpace(w.GivenName) != "" && strings.TrimSpace(w.Surname) != ""
}

// getOrCreateWriter inserts w unless a writer with the same natural key
// exists, then returns the stored row. Concurrent callers converge on the
// single row kept by the unique index on name_key.
func getOrCreateWriter(ctx context.Context, q querier, w *domain.Writer) (*domain.Writer, error) {
	if !validWriter(w) {
		return nil, store.ErrInvalidInput.WithMessage("writer given name and surname are required")
	}
	key := writerKey(w.GivenName, w.Surname)

	if _, err := q.ExecContext(ctx, `
		INSERT INTO writers (given_name, surname, name_key, birth_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name_key) DO NOTHING`,
		strings.TrimSpace(w.GivenName), strings.TrimSpace(w.Surname), key, nullString(w.BirthDate),
	); err != nil {
		return nil, fmt.Errorf("insert writer: %w", err)
	}

	row := q.QueryRowContext(ctx, `SELECT `+writerColumns+` FROM writers w WHERE w.name_key = ?`, key)
	return scanWriter(row)
}

// GetOrCreateWriter returns the writer matching w's names, creating it if needed.
func (s *Store) GetOrCreateWriter(ctx context.Context, w *domain.Writer) (*domain.Writer, error) {
	return getOrCreateWriter(ctx, s.db, w)
}

// CreateWriter inserts w. Returns store.ErrAlreadyExists when a writer with
// the same names already exists.
func (s *Store) CreateWriter(ctx context.Context, w *domain.Writer) error {
	if !validWriter(w) {
		return store.ErrInvalidInput.WithMessage("writer given name and surname are required")
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO writers (given_name, surname, name_key, birth_date)
		VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(w.GivenName), strings.TrimSpace(w.Surname),
		writerKey(w.GivenName, w.Surname), nullString(w.BirthDate),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	w.ID, err = result.LastInsertId()
	return err
}

// GetWriter retrieves a writer by ID.
func (s *Store) GetWriter(ctx context.Context, id int64) (*domain.Writer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+writerColumns+` FROM writers w WHERE w.id = ?`, id)

	w, err := scanWriter(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateWriter rewrites a writer's names and birth date.
func (s *Store) UpdateWriter(ctx context.Context, w *domain.Writer) error {
	if !validWriter(w) {
		return store.ErrInvalidInput.WithMessage("writer given name and surname are required")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE writers SET given_name = ?, surname = ?, name_key = ?, birth_date = ?
		WHERE id = ?`,
		strings.TrimSpace(w.GivenName), strings.TrimSpace(w.Surname),
		writerKey(w.GivenName, w.Surname), nullString(w.BirthDate), w.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteWriter removes a writer and its publication links.
func (s *Store) DeleteWriter(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM writers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListWriters returns writers ordered by ID.
func (s *Store) ListWriters(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Writer], error) {
	params.Validate()

	afterID, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, store.ErrInvalidInput.WithCause(err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM writers`).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+writerColumns+` FROM writers w WHERE w.id > ? ORDER BY w.id ASC LIMIT ?`,
		afterID, params.Limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	writers := []*domain.Writer{}
	for rows.Next() {
		w, err := scanWriter(rows)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(writers) > params.Limit
	if hasMore {
		writers = writers[:params.Limit]
	}
	var next string
	if hasMore && len(writers) > 0 {
		next = store.EncodeCursor(writers[len(writers)-1].ID)
	}
	return &store.PaginatedResult[*domain.Writer]{
		Items:      writers,
		NextCursor: next,
		HasMore:    hasMore,
		Total:      total,
	}, nil
}
