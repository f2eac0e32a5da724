package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/librisapp/libris-server/internal/metrics"
)

const (
	keyPrefix      = "libris:recs:"
	breakerName    = "redis-recommendations"
	defaultTimeout = 500 * time.Millisecond
	scanBatch      = 200
)

// ErrUnavailable wraps breaker rejections so callers can tell a tripped
// circuit from a command failure.
var ErrUnavailable = errors.New("recommendation cache unavailable")

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration

	// Consecutive failures that open the breaker. Default 5.
	TripAfter uint32
	// How long the breaker stays open before probing again. Default 30s.
	OpenTimeout time.Duration
}

// Redis is a RecommendationCache backed by go-redis, with every command
// routed through a circuit breaker.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

var _ RecommendationCache = (*Redis)(nil)

// NewRedis connects lazily; use Ping to verify the server.
func NewRedis(opts RedisOptions, logger *slog.Logger) *Redis {
	if opts.TripAfter == 0 {
		opts.TripAfter = 5
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.TripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:         opts.Addr,
			Password:     opts.Password,
			DB:           opts.DB,
			DialTimeout:  time.Second,
			ReadTimeout:  defaultTimeout,
			WriteTimeout: defaultTimeout,
		}),
		ttl:    opts.TTL,
		cb:     cb,
		logger: logger,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func key(userID string) string {
	return keyPrefix + userID
}

func (r *Redis) execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := r.cb.Execute(func() (any, error) { return fn(ctx) })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, err
}

// Get returns the cached entry for userID, or nil on a miss.
func (r *Redis) Get(ctx context.Context, userID string) (*Entry, error) {
	v, err := r.execute(ctx, func(ctx context.Context) (any, error) {
		raw, err := r.client.Get(ctx, key(userID)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return raw, err
	})
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cache get: %w", err)
	}

	raw, _ := v.([]byte)
	if raw == nil {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, nil //nolint:nilnil // miss
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		r.logger.Warn("discarding corrupt recommendation cache entry", "user_id", userID, "error", err)
		_ = r.Invalidate(ctx, userID)
		return nil, nil //nolint:nilnil // miss
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return &entry, nil
}

// Set stores entry for userID with the configured TTL.
func (r *Redis) Set(ctx context.Context, userID string, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	_, err = r.execute(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.Set(ctx, key(userID), raw, r.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes the entry for userID.
func (r *Redis) Invalidate(ctx context.Context, userID string) error {
	_, err := r.execute(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.Del(ctx, key(userID)).Err()
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Flush removes every recommendation entry. Other keys in the database are
// left alone. Each SCAN page and its DEL run as one breaker call with their
// own deadline, so a large key space cannot exhaust a single timeout.
func (r *Redis) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cache flush: %w", err)
		}
		v, err := r.execute(ctx, func(ctx context.Context) (any, error) {
			keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
			if err != nil {
				return nil, err
			}
			if len(keys) > 0 {
				if err := r.client.Del(ctx, keys...).Err(); err != nil {
					return nil, err
				}
			}
			return next, nil
		})
		if err != nil {
			return fmt.Errorf("cache flush: %w", err)
		}
		cursor, _ = v.(uint64)
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	_, err := r.execute(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.Ping(ctx).Err()
	})
	return err
}

// State reports the breaker state ("closed", "half-open", "open").
func (r *Redis) State() string {
	return r.cb.State().String()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
