package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

// EdgesFrom returns every edge whose origin is in origins, highest score
// first per origin.
func (s *Store) EdgesFrom(ctx context.Context, origins []int64) ([]domain.SimilarityEdge, error) {
	edges := []domain.SimilarityEdge{}
	if len(origins) == 0 {
		return edges, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT origin_id, destination_id, score FROM similarities
		WHERE origin_id IN (`+placeholders(len(origins))+`)
		ORDER BY origin_id, score DESC`, int64Args(origins)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.SimilarityEdge
		if err := rows.Scan(&e.Origin, &e.Destination, &e.Score); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// AggregateFrom sums scores per destination in SQL. Destinations in origins
// are excluded; ties on score resolve by ascending destination ID.
func (s *Store) AggregateFrom(ctx context.Context, origins []int64, limit int) ([]domain.Candidate, error) {
	candidates := []domain.Candidate{}
	if len(origins) == 0 || limit <= 0 {
		return candidates, nil
	}

	ph := placeholders(len(origins))
	args := append(int64Args(origins), int64Args(origins)...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT destination_id, SUM(score) AS total
		FROM similarities
		WHERE origin_id IN (`+ph+`)
		AND destination_id NOT IN (`+ph+`)
		GROUP BY destination_id
		ORDER BY total DESC, destination_id ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.PublicationID, &c.Score); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// UpsertSimilarities writes edges in one transaction. An existing
// (origin, destination) pair takes the new score. Returns the number of
// edges written.
func (s *Store) UpsertSimilarities(ctx context.Context, edges []domain.SimilarityEdge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO similarities (origin_id, destination_id, score) VALUES (?, ?, ?)
		ON CONFLICT(origin_id, destination_id) DO UPDATE SET score = excluded.score`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.Origin, e.Destination, e.Score); err != nil {
			if isForeignKeyViolation(err) {
				return 0, store.ErrNotFound.WithMessage(
					fmt.Sprintf("edge %d->%d references an unknown publication", e.Origin, e.Destination))
			}
			return 0, fmt.Errorf("upsert edge %d->%d: %w", e.Origin, e.Destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit similarities: %w", err)
	}
	return len(edges), nil
}

// CountSimilarities returns the number of stored edges.
func (s *Store) CountSimilarities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM similarities`).Scan(&n)
	return n, err
}

// CreateSimilarityImport records the start of an import run.
func (s *Store) CreateSimilarityImport(ctx context.Context, imp *domain.SimilarityImport) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO similarity_imports (id, source, edge_count, skipped, symmetrized, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.Source, imp.EdgeCount, imp.Skipped, imp.Symmetrized,
		formatTime(imp.StartedAt), nullTimeString(imp.FinishedAt))
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// FinishSimilarityImport stores the final counts of an import run.
func (s *Store) FinishSimilarityImport(ctx context.Context, imp *domain.SimilarityImport) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE similarity_imports SET edge_count = ?, skipped = ?, finished_at = ?
		WHERE id = ?`,
		imp.EdgeCount, imp.Skipped, nullTimeString(imp.FinishedAt), imp.ID)
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

// ListSimilarityImports returns the most recent import runs first.
func (s *Store) ListSimilarityImports(ctx context.Context, limit int) ([]*domain.SimilarityImport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, edge_count, skipped, symmetrized, started_at, finished_at
		FROM similarity_imports
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	imports := []*domain.SimilarityImport{}
	for rows.Next() {
		var (
			imp        domain.SimilarityImport
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&imp.ID, &imp.Source, &imp.EdgeCount, &imp.Skipped,
			&imp.Symmetrized, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		if imp.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if imp.FinishedAt, err = parseNullableTime(finishedAt); err != nil {
			return nil, err
		}
		imports = append(imports, &imp)
	}
	return imports, rows.Err()
}
