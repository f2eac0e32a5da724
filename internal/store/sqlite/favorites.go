package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

// AddFavorite inserts (userID, publicationID) if the pair is new and the
// user holds fewer than limit favorites. The checks and the insert share one
// BEGIN IMMEDIATE transaction, so concurrent adds for the same user serialize
// on the write lock; the UNIQUE(user_id, publication_id) index backs up the
// duplicate check.
func (s *Store) AddFavorite(ctx context.Context, userID string, publicationID int64, limit int) (*domain.Favorite, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = ? AND publication_id = ?)`,
		userID, publicationID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check favorite: %w", err)
	}
	if exists {
		return nil, store.ErrAlreadyExists
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return nil, fmt.Errorf("count favorites: %w", err)
	}
	if limit > 0 && count >= limit {
		return nil, store.ErrLimitReached
	}

	fav := &domain.Favorite{
		UserID:        userID,
		PublicationID: publicationID,
		CreatedAt:     time.Now(),
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO favorites (user_id, publication_id, created_at) VALUES (?, ?, ?)`,
		userID, publicationID, formatTime(fav.CreatedAt))
	if isUniqueViolation(err) {
		return nil, store.ErrAlreadyExists
	}
	if isForeignKeyViolation(err) {
		return nil, s.favoriteReferenceError(ctx, tx, publicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert favorite: %w", err)
	}
	if fav.ID, err = result.LastInsertId(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit favorite: %w", err)
	}
	return fav, nil
}

// favoriteReferenceError tells a missing publication from a missing user
// after the insert failed its foreign keys.
func (s *Store) favoriteReferenceError(ctx context.Context, q querier, publicationID int64) error {
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM publications WHERE id = ?)`, publicationID).Scan(&exists); err != nil {
		return fmt.Errorf("check publication: %w", err)
	}
	if !exists {
		return store.ErrNotFound.WithMessage("publication not found")
	}
	return store.ErrUnknownUser
}

// RemoveFavorite deletes the pair or returns store.ErrNotFound.
func (s *Store) RemoveFavorite(ctx context.Context, userID string, publicationID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND publication_id = ?`, userID, publicationID)
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

// FavoriteIDs returns the user's favorited publication IDs, newest first.
func (s *Store) FavoriteIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT publication_id FROM favorites
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FavoritePublications returns the user's favorited publications, newest first.
func (s *Store) FavoritePublications(ctx context.Context, userID string) ([]*domain.Publication, error) {
	ids, err := s.FavoriteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.GetPublicationsByIDs(ctx, ids)
}

// CountFavorites returns how many favorites the user holds.
func (s *Store) CountFavorites(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
