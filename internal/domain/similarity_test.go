package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityEdge_Reverse(t *testing.T) {
	e := SimilarityEdge{Origin: 10, Destination: 20, Score: 0.6}
	r := e.Reverse()

	assert.Equal(t, int64(20), r.Origin)
	assert.Equal(t, int64(10), r.Destination)
	assert.InDelta(t, 0.6, r.Score, 1e-9)
	assert.Equal(t, e, r.Reverse())
}

func TestSimilarityEdge_Checks(t *testing.T) {
	assert.True(t, SimilarityEdge{Origin: 4, Destination: 4}.IsSelfLoop())
	assert.False(t, SimilarityEdge{Origin: 4, Destination: 5}.IsSelfLoop())

	assert.True(t, SimilarityEdge{Score: 0}.ValidScore())
	assert.True(t, SimilarityEdge{Score: 3.5}.ValidScore())
	assert.False(t, SimilarityEdge{Score: -0.1}.ValidScore())
	assert.False(t, SimilarityEdge{Score: math.NaN()}.ValidScore())
	assert.False(t, SimilarityEdge{Score: math.Inf(1)}.ValidScore())
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(time.Minute)))
}
