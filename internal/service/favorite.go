package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/librisapp/libris-server/internal/domain"
	domainerrors "github.com/librisapp/libris-server/internal/errors"
	"github.com/librisapp/libris-server/internal/metrics"
	"github.com/librisapp/libris-server/internal/recommend"
	"github.com/librisapp/libris-server/internal/store"
)

// FavoriteService manages per-user favorites and the recommendations
// derived from them.
type FavoriteService struct {
	store  store.FavoriteStore
	engine *recommend.Engine
	limit  int
	logger *slog.Logger
}

// NewFavoriteService creates a favorite service. A non-positive limit falls
// back to domain.DefaultFavoriteLimit.
func NewFavoriteService(store store.FavoriteStore, engine *recommend.Engine, limit int, logger *slog.Logger) *FavoriteService {
	if limit <= 0 {
		limit = domain.DefaultFavoriteLimit
	}
	return &FavoriteService{
		store:  store,
		engine: engine,
		limit:  limit,
		logger: logger,
	}
}

// Limit returns the maximum number of favorites per user.
func (s *FavoriteService) Limit() int {
	return s.limit
}

// AddFavorite favorites a publication and returns the user's refreshed
// recommendations.
func (s *FavoriteService) AddFavorite(ctx context.Context, userID string, publicationID int64) (*domain.Favorite, []*domain.Publication, error) {
	fav, err := s.store.AddFavorite(ctx, userID, publicationID, s.limit)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			metrics.RecordFavorite("add", metrics.OutcomeDuplicate)
			return nil, nil, domainerrors.DuplicateFavorite()
		case errors.Is(err, store.ErrLimitReached):
			metrics.RecordFavorite("add", metrics.OutcomeLimit)
			return nil, nil, domainerrors.FavoriteLimitExceeded(s.limit)
		case store.IsNotFound(err):
			metrics.RecordFavorite("add", metrics.OutcomeNotFound)
			return nil, nil, domainerrors.NotFound("Publication not found.")
		case errors.Is(err, store.ErrUnknownUser):
			metrics.RecordFavorite("add", metrics.OutcomeError)
			return nil, nil, domainerrors.Unauthorized("User account no longer exists.")
		}
		metrics.RecordFavorite("add", metrics.OutcomeError)
		return nil, nil, fmt.Errorf("add favorite: %w", err)
	}
	metrics.RecordFavorite("add", metrics.OutcomeSuccess)

	s.logger.Info("favorite added", "user_id", userID, "publication_id", publicationID)

	recs, err := s.engine.Refresh(ctx, userID)
	if err != nil {
		return fav, nil, fmt.Errorf("compute recommendations: %w", err)
	}
	return fav, recs, nil
}

// RemoveFavorite unfavorites a publication. The cached recommendations are
// dropped and recomputed on the next read.
func (s *FavoriteService) RemoveFavorite(ctx context.Context, userID string, publicationID int64) error {
	if err := s.store.RemoveFavorite(ctx, userID, publicationID); err != nil {
		if store.IsNotFound(err) {
			metrics.RecordFavorite("remove", metrics.OutcomeNotFound)
			return domainerrors.FavoriteNotFound(publicationID)
		}
		metrics.RecordFavorite("remove", metrics.OutcomeError)
		return fmt.Errorf("remove favorite: %w", err)
	}
	metrics.RecordFavorite("remove", metrics.OutcomeSuccess)

	s.engine.Invalidate(ctx, userID)
	s.logger.Info("favorite removed", "user_id", userID, "publication_id", publicationID)
	return nil
}

// ListFavorites returns the user's favorite publications, newest first.
func (s *FavoriteService) ListFavorites(ctx context.Context, userID string) ([]*domain.Publication, error) {
	pubs, err := s.store.FavoritePublications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return pubs, nil
}

// Recommendations returns the user's current recommendations.
func (s *FavoriteService) Recommendations(ctx context.Context, userID string) ([]*domain.Publication, error) {
	recs, err := s.engine.Recommend(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return recs, nil
}
