// Package recommend turns a user's favorites into ranked publication
// suggestions using the precomputed similarity graph.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/librisapp/libris-server/internal/cache"
	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/metrics"
)

// DefaultTopK is the number of recommendations returned per user.
const DefaultTopK = 5

// Source is the slice of the store the engine reads.
type Source interface {
	FavoriteIDs(ctx context.Context, userID string) ([]int64, error)
	EdgesFrom(ctx context.Context, origins []int64) ([]domain.SimilarityEdge, error)
	AggregateFrom(ctx context.Context, origins []int64, limit int) ([]domain.Candidate, error)
	GetPublicationsByIDs(ctx context.Context, ids []int64) ([]*domain.Publication, error)
}

// Strategy selects where aggregation happens.
type Strategy string

const (
	// StrategyFold loads raw edges and ranks them in Go.
	StrategyFold Strategy = "fold"
	// StrategySQL lets the database group, sum and order.
	StrategySQL Strategy = "sql"
)

// Options configures an Engine.
type Options struct {
	TopK     int
	Strategy Strategy
}

// Engine computes recommendations and keeps the per-user cache coherent.
// It is safe for concurrent use.
type Engine struct {
	source   Source
	cache    cache.RecommendationCache
	topK     int
	strategy Strategy
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates an engine. A nil cache disables caching.
func NewEngine(source Source, c cache.RecommendationCache, opts Options, logger *slog.Logger) *Engine {
	if c == nil {
		c = cache.Noop{}
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyFold
	}
	return &Engine{
		source:   source,
		cache:    c,
		topK:     opts.TopK,
		strategy: opts.Strategy,
		logger:   logger,
		now:      time.Now,
	}
}

// TopK returns the configured result size.
func (e *Engine) TopK() int {
	return e.topK
}

// Recommend returns up to TopK publications for userID, best first.
// An empty userID or a user without favorites yields an empty list.
func (e *Engine) Recommend(ctx context.Context, userID string) ([]*domain.Publication, error) {
	if userID == "" {
		return []*domain.Publication{}, nil
	}

	start := time.Now()
	entry, err := e.cache.Get(ctx, userID)
	if err != nil {
		e.logger.Warn("recommendation cache read failed", "user_id", userID, "error", err)
	}
	if entry != nil {
		favorites, err := e.source.FavoriteIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load favorites: %w", err)
		}
		// A write that raced a favorite change can leave a ranking that
		// predates it; such an entry is recomputed, never served.
		if !containsAny(entry.PublicationIDs, favorites) {
			pubs, err := e.source.GetPublicationsByIDs(ctx, entry.PublicationIDs)
			if err != nil {
				return nil, fmt.Errorf("resolve cached recommendations: %w", err)
			}
			metrics.ObserveRecommendation("cache", time.Since(start))
			return pubs, nil
		}
		e.logger.Debug("cached recommendations include a favorite, recomputing", "user_id", userID)
	}

	return e.Refresh(ctx, userID)
}

// Refresh recomputes recommendations for userID, ignoring any cached entry,
// and stores the fresh ranking.
func (e *Engine) Refresh(ctx context.Context, userID string) ([]*domain.Publication, error) {
	if userID == "" {
		return []*domain.Publication{}, nil
	}

	// Drop the old entry first so a failed recompute cannot leave it behind.
	e.Invalidate(ctx, userID)

	start := time.Now()
	ids, err := e.rank(ctx, userID)
	if err != nil {
		return nil, err
	}

	pubs, err := e.source.GetPublicationsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve recommendations: %w", err)
	}

	if err := e.cache.Set(ctx, userID, &cache.Entry{PublicationIDs: ids, ComputedAt: e.now()}); err != nil {
		e.logger.Warn("recommendation cache write failed", "user_id", userID, "error", err)
	}

	took := time.Since(start)
	metrics.ObserveRecommendation("computed", took)
	e.logger.Debug("recommendations computed",
		"user_id", userID,
		"count", len(pubs),
		"strategy", string(e.strategy),
		"took", took,
	)
	return pubs, nil
}

// rank returns the ordered publication IDs to recommend.
func (e *Engine) rank(ctx context.Context, userID string) ([]int64, error) {
	favorites, err := e.source.FavoriteIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	if len(favorites) == 0 {
		return []int64{}, nil
	}

	var candidates []domain.Candidate
	switch e.strategy {
	case StrategySQL:
		candidates, err = e.source.AggregateFrom(ctx, favorites, e.topK)
		if err != nil {
			return nil, fmt.Errorf("aggregate similarities: %w", err)
		}
	default:
		edges, err := e.source.EdgesFrom(ctx, favorites)
		if err != nil {
			return nil, fmt.Errorf("load similarities: %w", err)
		}
		metrics.RecommendationCandidates.Observe(float64(distinctDestinations(edges)))
		candidates = Rank(edges, favorites, e.topK)
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.PublicationID
	}
	return ids, nil
}

func containsAny(ids, set []int64) bool {
	for _, id := range ids {
		if slices.Contains(set, id) {
			return true
		}
	}
	return false
}

func distinctDestinations(edges []domain.SimilarityEdge) int {
	seen := make(map[int64]struct{}, len(edges))
	for _, e := range edges {
		seen[e.Destination] = struct{}{}
	}
	return len(seen)
}

// Invalidate drops the cached ranking for userID. Failures are logged; the
// entry expires on its own.
func (e *Engine) Invalidate(ctx context.Context, userID string) {
	if err := e.cache.Invalidate(ctx, userID); err != nil {
		e.logger.Warn("recommendation cache invalidate failed", "user_id", userID, "error", err)
	}
}

// InvalidateAll drops every cached ranking, e.g. after the similarity graph
// changed.
func (e *Engine) InvalidateAll(ctx context.Context) {
	if err := e.cache.Flush(ctx); err != nil {
		e.logger.Warn("recommendation cache flush failed", "error", err)
	}
}
