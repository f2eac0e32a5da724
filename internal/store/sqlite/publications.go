package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

// publicationColumns must match the scan order in scanPublication.
const publicationColumns = `p.id, p.title, p.isbn, p.isbn13, p.language, p.average_rating,
	p.format, p.page_count, p.publisher, p.publication_date, p.description,
	p.cover_url, p.features, p.created_at, p.updated_at`

func scanPublication(scanner interface{ Scan(dest ...any) error }) (*domain.Publication, error) {
	var (
		p         domain.Publication
		isbn      sql.NullString
		isbn13    sql.NullString
		features  sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&p.ID,
		&p.Title,
		&isbn,
		&isbn13,
		&p.Language,
		&p.AverageRating,
		&p.Format,
		&p.PageCount,
		&p.Publisher,
		&p.PublicationDate,
		&p.Description,
		&p.CoverURL,
		&features,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ISBN = isbn.String
	p.ISBN13 = isbn13.String
	if features.Valid && features.String != "" {
		if err := json.Unmarshal([]byte(features.String), &p.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	p.Writers = []domain.Writer{}
	p.Shelves = []domain.LibraryShelf{}
	return &p, nil
}

func featuresArg(f domain.FeatureVector) (sql.NullString, error) {
	if len(f) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal features: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// CreatePublication inserts p and its writer and shelf links in one transaction.
func (s *Store) CreatePublication(ctx context.Context, p *domain.Publication) error {
	features, err := featuresArg(p.Features)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	result, err := tx.ExecContext(ctx, `
		INSERT INTO publications (
			title, isbn, isbn13, language, average_rating, format, page_count,
			publisher, publication_date, description, cover_url, features,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title,
		nullString(p.ISBN),
		nullString(p.ISBN13),
		p.Language,
		p.AverageRating,
		p.Format,
		p.PageCount,
		p.Publisher,
		p.PublicationDate,
		p.Description,
		p.CoverURL,
		features,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessage("isbn already exists")
	}
	if err != nil {
		return fmt.Errorf("insert publication: %w", err)
	}
	if p.ID, err = result.LastInsertId(); err != nil {
		return err
	}

	if err := s.linkPublication(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdatePublication rewrites p and replaces its writer and shelf links.
func (s *Store) UpdatePublication(ctx context.Context, p *domain.Publication) error {
	features, err := featuresArg(p.Features)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	p.UpdatedAt = time.Now()
	result, err := tx.ExecContext(ctx, `
		UPDATE publications SET
			title = ?, isbn = ?, isbn13 = ?, language = ?, average_rating = ?,
			format = ?, page_count = ?, publisher = ?, publication_date = ?,
			description = ?, cover_url = ?, features = ?, updated_at = ?
		WHERE id = ?`,
		p.Title,
		nullString(p.ISBN),
		nullString(p.ISBN13),
		p.Language,
		p.AverageRating,
		p.Format,
		p.PageCount,
		p.Publisher,
		p.PublicationDate,
		p.Description,
		p.CoverURL,
		features,
		formatTime(p.UpdatedAt),
		p.ID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessage("isbn already exists")
	}
	if err != nil {
		return fmt.Errorf("update publication: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM publication_writers WHERE publication_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear writers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM publication_shelves WHERE publication_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear shelves: %w", err)
	}
	if err := s.linkPublication(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// linkPublication resolves p's writers and shelves by natural key and links
// them, rewriting p.Writers and p.Shelves with the stored rows.
func (s *Store) linkPublication(ctx context.Context, q querier, p *domain.Publication) error {
	writers := make([]domain.Writer, 0, len(p.Writers))
	seenWriters := make(map[int64]bool, len(p.Writers))
	for i := range p.Writers {
		w, err := getOrCreateWriter(ctx, q, &p.Writers[i])
		if err != nil {
			return fmt.Errorf("resolve writer: %w", err)
		}
		if seenWriters[w.ID] {
			continue
		}
		seenWriters[w.ID] = true
		if _, err := q.ExecContext(ctx,
			`INSERT INTO publication_writers (publication_id, writer_id, position) VALUES (?, ?, ?)`,
			p.ID, w.ID, len(writers)); err != nil {
			return fmt.Errorf("link writer: %w", err)
		}
		writers = append(writers, *w)
	}

	shelves := make([]domain.LibraryShelf, 0, len(p.Shelves))
	seenShelves := make(map[int64]bool, len(p.Shelves))
	for _, in := range p.Shelves {
		sh, err := getOrCreateShelf(ctx, q, in.Name)
		if err != nil {
			return fmt.Errorf("resolve shelf: %w", err)
		}
		if seenShelves[sh.ID] {
			continue
		}
		seenShelves[sh.ID] = true
		if _, err := q.ExecContext(ctx,
			`INSERT INTO publication_shelves (publication_id, shelf_id) VALUES (?, ?)`,
			p.ID, sh.ID); err != nil {
			return fmt.Errorf("link shelf: %w", err)
		}
		shelves = append(shelves, *sh)
	}

	p.Writers = writers
	p.Shelves = shelves
	return nil
}

// DeletePublication removes a publication; favorites, links and similarity
// edges cascade.
func (s *Store) DeletePublication(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE id = ?`, id)
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

// GetPublication retrieves a publication with writers and shelves.
func (s *Store) GetPublication(ctx context.Context, id int64) (*domain.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+publicationColumns+` FROM publications p WHERE p.id = ?`, id)

	p, err := scanPublication(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, []*domain.Publication{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPublicationsByIDs returns publications in the order of ids, skipping
// IDs that do not exist.
func (s *Store) GetPublicationsByIDs(ctx context.Context, ids []int64) ([]*domain.Publication, error) {
	if len(ids) == 0 {
		return []*domain.Publication{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+publicationColumns+` FROM publications p WHERE p.id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	pubs, err := collectPublications(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Publication, len(pubs))
	for _, p := range pubs {
		byID[p.ID] = p
	}
	ordered := make([]*domain.Publication, 0, len(pubs))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
			delete(byID, id)
		}
	}

	if err := s.loadRelations(ctx, ordered); err != nil {
		return nil, err
	}
	return ordered, nil
}

// escapeLike escapes LIKE wildcards; pair with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// ListPublications returns publications ordered by ID, optionally filtered by
// a case-insensitive substring of the title or a writer's names.
func (s *Store) ListPublications(ctx context.Context, filter store.PublicationFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Publication], error) {
	params.Validate()

	afterID, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, store.ErrInvalidInput.WithCause(err)
	}

	where := "1=1"
	var args []any
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := escapeLike(term)
		where = `(p.title LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM publication_writers pw
			JOIN writers w ON w.id = pw.writer_id
			WHERE pw.publication_id = p.id
			AND (w.given_name LIKE ? ESCAPE '\' OR w.surname LIKE ? ESCAPE '\')))`
		args = append(args, like, like, like)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM publications p WHERE `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	pageArgs := append(append([]any{}, args...), afterID, params.Limit+1)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+publicationColumns+` FROM publications p
		WHERE `+where+` AND p.id > ?
		ORDER BY p.id ASC
		LIMIT ?`, pageArgs...)
	if err != nil {
		return nil, err
	}
	pubs, err := collectPublications(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(pubs) > params.Limit
	if hasMore {
		pubs = pubs[:params.Limit]
	}
	if err := s.loadRelations(ctx, pubs); err != nil {
		return nil, err
	}

	var next string
	if hasMore && len(pubs) > 0 {
		next = store.EncodeCursor(pubs[len(pubs)-1].ID)
	}
	return &store.PaginatedResult[*domain.Publication]{
		Items:      pubs,
		NextCursor: next,
		HasMore:    hasMore,
		Total:      total,
	}, nil
}

// PublicationExists reports whether a publication with id exists.
func (s *Store) PublicationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM publications WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

// ISBNTaken reports whether a publication other than excludeID holds isbn.
func (s *Store) ISBNTaken(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	if isbn == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM publications WHERE isbn = ? AND id != ?)`,
		isbn, excludeID).Scan(&exists)
	return exists, err
}

// collectPublications scans and closes rows.
func collectPublications(rows *sql.Rows) ([]*domain.Publication, error) {
	defer rows.Close()

	pubs := []*domain.Publication{}
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}

// loadRelations fills Writers and Shelves for pubs with two queries.
func (s *Store) loadRelations(ctx context.Context, pubs []*domain.Publication) error {
	if len(pubs) == 0 {
		return nil
	}

	ids := make([]int64, len(pubs))
	byID := make(map[int64]*domain.Publication, len(pubs))
	for i, p := range pubs {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	args := int64Args(ids)

	rows, err := s.db.QueryContext(ctx, `
		SELECT pw.publication_id, `+writerColumns+`
		FROM publication_writers pw
		JOIN writers w ON w.id = pw.writer_id
		WHERE pw.publication_id IN (`+placeholders(len(ids))+`)
		ORDER BY pw.publication_id, pw.position`, args...)
	if err != nil {
		return fmt.Errorf("load writers: %w", err)
	}
	for rows.Next() {
		var pubID int64
		w, err := scanWriter(rows, &pubID)
		if err != nil {
			rows.Close()
			return err
		}
		byID[pubID].Writers = append(byID[pubID].Writers, *w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT ps.publication_id, sh.id, sh.shelf_name
		FROM publication_shelves ps
		JOIN shelves sh ON sh.id = ps.shelf_id
		WHERE ps.publication_id IN (`+placeholders(len(ids))+`)
		ORDER BY ps.publication_id, sh.shelf_name`, args...)
	if err != nil {
		return fmt.Errorf("load shelves: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pubID int64
			sh    domain.LibraryShelf
		)
		if err := rows.Scan(&pubID, &sh.ID, &sh.Name); err != nil {
			return err
		}
		byID[pubID].Shelves = append(byID[pubID].Shelves, sh)
	}
	return rows.Err()
}
