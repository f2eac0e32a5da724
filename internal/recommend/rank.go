package recommend

import (
	"cmp"
	"slices"

	"github.com/librisapp/libris-server/internal/domain"
)

// Rank folds edges into per-destination score sums and returns the best k.
//
// Edges pointing at a favorite are dropped, so a favorite is never
// recommended back. Ordering is by summed score descending with ties broken
// by ascending publication ID, which makes the result deterministic.
func Rank(edges []domain.SimilarityEdge, favorites []int64, k int) []domain.Candidate {
	if k <= 0 || len(edges) == 0 {
		return []domain.Candidate{}
	}

	exclude := make(map[int64]struct{}, len(favorites))
	for _, id := range favorites {
		exclude[id] = struct{}{}
	}

	sums := make(map[int64]float64)
	for _, e := range edges {
		if _, fav := exclude[e.Destination]; fav {
			continue
		}
		sums[e.Destination] += e.Score
	}

	candidates := make([]domain.Candidate, 0, len(sums))
	for id, score := range sums {
		candidates = append(candidates, domain.Candidate{PublicationID: id, Score: score})
	}
	slices.SortFunc(candidates, compareCandidates)

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func compareCandidates(a, b domain.Candidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.PublicationID, b.PublicationID)
}
