package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/librisapp/libris-server/internal/cache"
	"github.com/librisapp/libris-server/internal/config"
	"github.com/librisapp/libris-server/internal/logger"
	"github.com/librisapp/libris-server/internal/recommend"
)

// CacheHandle wraps the recommendation cache with shutdown capability.
type CacheHandle struct {
	cache.RecommendationCache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideRecommendationCache connects to Redis when enabled. An unreachable
// server is logged, not fatal: the circuit breaker keeps requests on the
// direct path until Redis recovers.
func ProvideRecommendationCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Redis.Enabled {
		log.Info("Recommendation cache disabled")
		return &CacheHandle{RecommendationCache: cache.Noop{}}, nil
	}

	redisCache := cache.NewRedis(cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, log.WithComponent("cache").Logger)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("Redis unreachable, recommendations will be computed directly", "addr", cfg.Redis.Addr, "error", err)
	} else {
		log.Info("Recommendation cache connected", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	return &CacheHandle{RecommendationCache: redisCache}, nil
}

// ProvideRecommendEngine provides the recommendation engine.
func ProvideRecommendEngine(i do.Injector) (*recommend.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return recommend.NewEngine(storeHandle.Store, cacheHandle.RecommendationCache, recommend.Options{
		TopK:     cfg.Recommend.TopK,
		Strategy: recommend.Strategy(cfg.Recommend.Strategy),
	}, log.WithComponent("recommend").Logger), nil
}
