package domain

import (
	"math"
	"time"
)

// SimilarityEdge is a directed, weighted link between two publications.
// The importer writes both directions for every pair it ingests.
type SimilarityEdge struct {
	Origin      int64   `json:"origin"`
	Destination int64   `json:"destination"`
	Score       float64 `json:"score"`
}

// IsSelfLoop reports whether the edge points back at its origin.
func (e SimilarityEdge) IsSelfLoop() bool {
	return e.Origin == e.Destination
}

// Reverse returns the edge with origin and destination swapped.
func (e SimilarityEdge) Reverse() SimilarityEdge {
	return SimilarityEdge{Origin: e.Destination, Destination: e.Origin, Score: e.Score}
}

// ValidScore reports whether the score is finite and non-negative.
func (e SimilarityEdge) ValidScore() bool {
	return !math.IsNaN(e.Score) && !math.IsInf(e.Score, 0) && e.Score >= 0
}

// Candidate is a recommendation candidate with its aggregated score.
type Candidate struct {
	PublicationID int64   `json:"publication_id"`
	Score         float64 `json:"score"`
}

// SimilarityImport records one ingestion run of similarity edges.
type SimilarityImport struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	EdgeCount   int        `json:"edge_count"`
	Skipped     int        `json:"skipped"`
	Symmetrized bool       `json:"symmetrized"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
