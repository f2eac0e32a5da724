// Package cache stores per-user recommendation lists.
//
// The cache holds ranked publication IDs only. Callers resolve them against
// the store on read so edits to a publication never serve stale details.
package cache

import (
	"context"
	"time"
)

// Entry is one cached recommendation list.
type Entry struct {
	PublicationIDs []int64   `json:"ids"`
	ComputedAt     time.Time `json:"computed_at"`
}

// RecommendationCache is implemented by Redis and a no-op fallback. A miss
// is reported as (nil, nil); errors mean the backend is unhealthy and callers
// should compute directly.
type RecommendationCache interface {
	Get(ctx context.Context, userID string) (*Entry, error)
	Set(ctx context.Context, userID string, entry *Entry) error
	Invalidate(ctx context.Context, userID string) error
	Flush(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Noop never stores anything. It is used when Redis is disabled.
type Noop struct{}

var _ RecommendationCache = Noop{}

// Get always misses.
func (Noop) Get(context.Context, string) (*Entry, error) { return nil, nil } //nolint:nilnil // miss

func (Noop) Set(context.Context, string, *Entry) error { return nil }
func (Noop) Invalidate(context.Context, string) error  { return nil }
func (Noop) Flush(context.Context) error               { return nil }
func (Noop) Ping(context.Context) error                { return nil }
func (Noop) Close() error                              { return nil }
