package sqlite

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/store"
)

// seedGraph creates publications and returns a lookup from label to ID.
func seedGraph(t *testing.T, s *Store, labels ...string) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64, len(labels))
	for _, l := range labels {
		ids[l] = insertTestPublication(t, s, l)
	}
	return ids
}

func TestEdgesFrom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGraph(t, s, "a", "b", "c", "d")

	_, err := s.UpsertSimilarities(ctx, []domain.SimilarityEdge{
		{Origin: g["a"], Destination: g["b"], Score: 0.2},
		{Origin: g["a"], Destination: g["c"], Score: 0.9},
		{Origin: g["b"], Destination: g["d"], Score: 0.5},
		{Origin: g["c"], Destination: g["d"], Score: 0.4},
	})
	if err != nil {
		t.Fatalf("UpsertSimilarities: %v", err)
	}

	edges, err := s.EdgesFrom(ctx, []int64{g["a"], g["b"]})
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(edges) != 3 {
		t.Fatalf("len: got %d, want 3 (%+v)", len(edges), edges)
	}
	for _, e := range edges {
		if e.Origin != g["a"] && e.Origin != g["b"] {
			t.Errorf("edge with unexpected origin: %+v", e)
		}
	}

	empty, err := s.EdgesFrom(ctx, nil)
	if err != nil {
		t.Fatalf("EdgesFrom(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no edges, got %v", empty)
	}
}

func TestAggregateFrom_SumsExcludesAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGraph(t, s, "f1", "f2", "p20", "p21", "p22", "p23")

	_, err := s.UpsertSimilarities(ctx, []domain.SimilarityEdge{
		{Origin: g["f1"], Destination: g["p20"], Score: 0.6},
		{Origin: g["f2"], Destination: g["p20"], Score: 0.5},
		{Origin: g["f1"], Destination: g["p21"], Score: 0.9},
		{Origin: g["f1"], Destination: g["f2"], Score: 0.99},
		{Origin: g["f2"], Destination: g["p22"], Score: 0.3},
		{Origin: g["f2"], Destination: g["p23"], Score: 0.3},
	})
	if err != nil {
		t.Fatalf("UpsertSimilarities: %v", err)
	}

	got, err := s.AggregateFrom(ctx, []int64{g["f1"], g["f2"]}, 5)
	if err != nil {
		t.Fatalf("AggregateFrom: %v", err)
	}

	want := []int64{g["p20"], g["p21"], g["p22"], g["p23"]}
	if len(got) != len(want) {
		t.Fatalf("len: got %d, want %d (%+v)", len(got), len(want), got)
	}
	for i, id := range want {
		if got[i].PublicationID != id {
			t.Errorf("rank %d: got %d, want %d", i, got[i].PublicationID, id)
		}
	}
	if math.Abs(got[0].Score-1.1) > 1e-9 {
		t.Errorf("aggregated score: got %f, want 1.1", got[0].Score)
	}

	top1, err := s.AggregateFrom(ctx, []int64{g["f1"], g["f2"]}, 1)
	if err != nil {
		t.Fatalf("AggregateFrom limit 1: %v", err)
	}
	if len(top1) != 1 || top1[0].PublicationID != g["p20"] {
		t.Errorf("limit 1: got %+v", top1)
	}
}

func TestUpsertSimilarities_ReplacesScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGraph(t, s, "a", "b")

	for _, score := range []float64{0.1, 0.7} {
		if _, err := s.UpsertSimilarities(ctx, []domain.SimilarityEdge{
			{Origin: g["a"], Destination: g["b"], Score: score},
		}); err != nil {
			t.Fatalf("UpsertSimilarities(%f): %v", score, err)
		}
	}

	n, err := s.CountSimilarities(ctx)
	if err != nil {
		t.Fatalf("CountSimilarities: %v", err)
	}
	if n != 1 {
		t.Errorf("count: got %d, want 1", n)
	}
	edges, _ := s.EdgesFrom(ctx, []int64{g["a"]})
	if len(edges) != 1 || edges[0].Score != 0.7 {
		t.Errorf("expected replaced score 0.7, got %+v", edges)
	}
}

func TestUpsertSimilarities_UnknownPublicationRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGraph(t, s, "a", "b")

	_, err := s.UpsertSimilarities(ctx, []domain.SimilarityEdge{
		{Origin: g["a"], Destination: g["b"], Score: 0.5},
		{Origin: g["a"], Destination: 424242, Score: 0.5},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	n, _ := s.CountSimilarities(ctx)
	if n != 0 {
		t.Errorf("expected rollback, found %d edges", n)
	}
}

func TestSimilarities_CascadeOnDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := seedGraph(t, s, "a", "b")

	if _, err := s.UpsertSimilarities(ctx, []domain.SimilarityEdge{
		{Origin: g["a"], Destination: g["b"], Score: 0.5},
		{Origin: g["b"], Destination: g["a"], Score: 0.5},
	}); err != nil {
		t.Fatalf("UpsertSimilarities: %v", err)
	}
	if err := s.DeletePublication(ctx, g["b"]); err != nil {
		t.Fatalf("DeletePublication: %v", err)
	}

	n, _ := s.CountSimilarities(ctx)
	if n != 0 {
		t.Errorf("expected edges to cascade, found %d", n)
	}
}

func TestSimilarityImports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	imp := &domain.SimilarityImport{
		ID:          "6f1c3e0a-6a47-4d8e-9c53-0d6a3a1f6b11",
		Source:      "edges.csv",
		Symmetrized: true,
		StartedAt:   time.Now(),
	}
	if err := s.CreateSimilarityImport(ctx, imp); err != nil {
		t.Fatalf("CreateSimilarityImport: %v", err)
	}

	finished := time.Now()
	imp.EdgeCount = 12
	imp.Skipped = 2
	imp.FinishedAt = &finished
	if err := s.FinishSimilarityImport(ctx, imp); err != nil {
		t.Fatalf("FinishSimilarityImport: %v", err)
	}

	list, err := s.ListSimilarityImports(ctx, 10)
	if err != nil {
		t.Fatalf("ListSimilarityImports: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len: got %d, want 1", len(list))
	}
	got := list[0]
	if got.EdgeCount != 12 || got.Skipped != 2 || !got.Symmetrized || got.FinishedAt == nil {
		t.Errorf("unexpected import record: %+v", got)
	}

	if err := s.FinishSimilarityImport(ctx, &domain.SimilarityImport{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("finish missing: got %v, want ErrNotFound", err)
	}
}
