package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/cache"
	"github.com/librisapp/libris-server/internal/domain"
)

// memSource is an in-memory Source.
type memSource struct {
	mu        sync.Mutex
	favorites map[string][]int64
	edges     []domain.SimilarityEdge
	pubs      map[int64]*domain.Publication
	edgeCalls int
	aggCalls  int
	failEdges error
}

func newMemSource() *memSource {
	return &memSource{favorites: map[string][]int64{}, pubs: map[int64]*domain.Publication{}}
}

func (m *memSource) addPubs(ids ...int64) {
	for _, id := range ids {
		m.pubs[id] = &domain.Publication{ID: id, Title: "Publication"}
	}
}

func (m *memSource) FavoriteIDs(_ context.Context, userID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.favorites[userID]), nil
}

func (m *memSource) EdgesFrom(_ context.Context, origins []int64) ([]domain.SimilarityEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edgeCalls++
	if m.failEdges != nil {
		return nil, m.failEdges
	}
	var out []domain.SimilarityEdge
	for _, e := range m.edges {
		if slices.Contains(origins, e.Origin) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memSource) AggregateFrom(ctx context.Context, origins []int64, limit int) ([]domain.Candidate, error) {
	edges, err := m.EdgesFrom(ctx, origins)
	m.mu.Lock()
	m.aggCalls++
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return Rank(edges, origins, limit), nil
}

func (m *memSource) GetPublicationsByIDs(_ context.Context, ids []int64) ([]*domain.Publication, error) {
	out := []*domain.Publication{}
	for _, id := range ids {
		if p, ok := m.pubs[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pubIDs(pubs []*domain.Publication) []int64 {
	out := make([]int64, len(pubs))
	for i, p := range pubs {
		out[i] = p.ID
	}
	return out
}

func scenarioSource() *memSource {
	src := newMemSource()
	src.addPubs(10, 11, 20, 21)
	src.favorites["usr-a"] = []int64{10, 11}
	src.edges = []domain.SimilarityEdge{
		edge(10, 20, 0.6),
		edge(11, 20, 0.5),
		edge(10, 21, 0.9),
		edge(11, 11, 0.3),
	}
	return src
}

func TestEngine_Scenario(t *testing.T) {
	for _, strategy := range []Strategy{StrategyFold, StrategySQL} {
		t.Run(string(strategy), func(t *testing.T) {
			e := NewEngine(scenarioSource(), nil, Options{Strategy: strategy}, discardLogger())

			got, err := e.Recommend(context.Background(), "usr-a")
			require.NoError(t, err)
			assert.Equal(t, []int64{20, 21}, pubIDs(got))
		})
	}
}

func TestEngine_AnonymousAndNoFavorites(t *testing.T) {
	src := scenarioSource()
	e := NewEngine(src, nil, Options{}, discardLogger())

	got, err := e.Recommend(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = e.Recommend(context.Background(), "usr-nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, src.edgeCalls, "no graph query without favorites")
}

func TestEngine_SkipsUnresolvable(t *testing.T) {
	src := scenarioSource()
	delete(src.pubs, 20)
	e := NewEngine(src, nil, Options{}, discardLogger())

	got, err := e.Recommend(context.Background(), "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, pubIDs(got))
}

func TestEngine_TopK(t *testing.T) {
	src := newMemSource()
	src.favorites["usr-a"] = []int64{1}
	for d := int64(2); d <= 12; d++ {
		src.addPubs(d)
		src.edges = append(src.edges, edge(1, d, float64(d)))
	}

	got, err := NewEngine(src, nil, Options{}, discardLogger()).Recommend(context.Background(), "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 11, 10, 9, 8}, pubIDs(got))

	e := NewEngine(src, nil, Options{TopK: 2}, discardLogger())
	assert.Equal(t, 2, e.TopK())
	got, err = e.Recommend(context.Background(), "usr-a")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEngine_PropagatesStorageErrors(t *testing.T) {
	src := scenarioSource()
	src.failEdges = errors.New("disk on fire")

	_, err := NewEngine(src, nil, Options{}, discardLogger()).Recommend(context.Background(), "usr-a")
	assert.ErrorContains(t, err, "disk on fire")
}

func newRedisCache(t *testing.T) cache.RecommendationCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewRedis(cache.RedisOptions{Addr: mr.Addr()}, discardLogger())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEngine_CacheReadThrough(t *testing.T) {
	ctx := context.Background()
	src := scenarioSource()
	e := NewEngine(src, newRedisCache(t), Options{}, discardLogger())

	first, err := e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, 1, src.edgeCalls)

	second, err := e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, pubIDs(first), pubIDs(second))
	assert.Equal(t, 1, src.edgeCalls, "second call served from cache")

	e.Invalidate(ctx, "usr-a")
	_, err = e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, 2, src.edgeCalls)

	e.InvalidateAll(ctx)
	_, err = e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, 3, src.edgeCalls)
}

func TestEngine_RefreshOverwritesCache(t *testing.T) {
	ctx := context.Background()
	src := scenarioSource()
	e := NewEngine(src, newRedisCache(t), Options{}, discardLogger())

	_, err := e.Recommend(ctx, "usr-a")
	require.NoError(t, err)

	// Favoriting 20 changes the ranking; Refresh must not serve the stale entry.
	src.favorites["usr-a"] = append(src.favorites["usr-a"], 20)
	got, err := e.Refresh(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, pubIDs(got))

	got, err = e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, pubIDs(got))
}

type brokenCache struct{ cache.Noop }

func (brokenCache) Get(context.Context, string) (*cache.Entry, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, *cache.Entry) error {
	return errors.New("connection refused")
}

func TestEngine_CacheFailureDegrades(t *testing.T) {
	e := NewEngine(scenarioSource(), brokenCache{}, Options{}, discardLogger())

	got, err := e.Recommend(context.Background(), "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{20, 21}, pubIDs(got))
}

func TestEngine_FailedRefreshDropsStaleEntry(t *testing.T) {
	ctx := context.Background()
	src := newMemSource()
	src.addPubs(10, 20, 21)
	src.favorites["usr-a"] = []int64{10}
	src.edges = []domain.SimilarityEdge{
		{Origin: 10, Destination: 20, Score: 0.9},
		{Origin: 10, Destination: 21, Score: 0.5},
	}
	c := newRedisCache(t)
	e := NewEngine(src, c, Options{}, discardLogger())

	got, err := e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	require.Equal(t, []int64{20, 21}, pubIDs(got))

	src.favorites["usr-a"] = []int64{20, 10}
	src.failEdges = errors.New("load similarities: transient")
	_, err = e.Refresh(ctx, "usr-a")
	require.Error(t, err)

	entry, err := c.Get(ctx, "usr-a")
	require.NoError(t, err)
	assert.Nil(t, entry, "failed refresh leaves no cached ranking")

	_, err = e.Recommend(ctx, "usr-a")
	require.Error(t, err, "nothing cached to fall back on")

	src.failEdges = nil
	got, err = e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, pubIDs(got))
}

func TestEngine_CachedEntryWithFavoriteIsRecomputed(t *testing.T) {
	ctx := context.Background()
	src := newMemSource()
	src.addPubs(10, 20, 21)
	src.favorites["usr-a"] = []int64{20, 10}
	src.edges = []domain.SimilarityEdge{
		{Origin: 10, Destination: 20, Score: 0.9},
		{Origin: 10, Destination: 21, Score: 0.5},
	}
	c := newRedisCache(t)
	e := NewEngine(src, c, Options{}, discardLogger())

	// A ranking written by a read that started before 20 was favorited.
	require.NoError(t, c.Set(ctx, "usr-a", &cache.Entry{PublicationIDs: []int64{20, 21}}))

	got, err := e.Recommend(ctx, "usr-a")
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, pubIDs(got))
	assert.Equal(t, 1, src.edgeCalls)

	entry, err := c.Get(ctx, "usr-a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []int64{21}, entry.PublicationIDs)
}
