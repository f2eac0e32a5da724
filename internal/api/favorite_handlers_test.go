package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/domain"
)

func ids(pubs []domain.Publication) []int64 {
	out := make([]int64, len(pubs))
	for i, p := range pubs {
		out[i] = p.ID
	}
	return out
}

func TestFavorites_Flow(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "ada").AccessToken

	a := ts.createPublication(t, token, "A", isbn(1))
	b := ts.createPublication(t, token, "B", isbn(2))
	c := ts.createPublication(t, token, "C", isbn(3))
	d := ts.createPublication(t, token, "D", isbn(4))
	ts.addEdges(t,
		domain.SimilarityEdge{Origin: a, Destination: c, Score: 0.6},
		domain.SimilarityEdge{Origin: b, Destination: c, Score: 0.5},
		domain.SimilarityEdge{Origin: a, Destination: d, Score: 0.9},
		domain.SimilarityEdge{Origin: a, Destination: b, Score: 2},
	)

	resp := ts.api.Post("/api/v1/favorites", bearer(token), map[string]any{"publication_id": a})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	added := decode[AddFavoriteResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "Publication added to favorites.", added.Detail)
	require.Len(t, added.Recommendations, 3)
	assert.Equal(t, []int64{b, d, c}, []int64{
		added.Recommendations[0].ID, added.Recommendations[1].ID, added.Recommendations[2].ID,
	})

	resp = ts.api.Post("/api/v1/favorites", bearer(token), map[string]any{"publication_id": a})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	errEnv := decode[any](t, resp.Body.Bytes())
	assert.Equal(t, "DUPLICATE_FAVORITE", errEnv.Error.Code)
	assert.Equal(t, "This publication is already in your favorites.", errEnv.Error.Message)

	resp = ts.api.Post("/api/v1/favorites", bearer(token), map[string]any{"publication_id": b})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.api.Get("/api/v1/favorites", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []int64{b, a}, ids(decode[[]domain.Publication](t, resp.Body.Bytes()).Data))

	resp = ts.api.Get("/api/v1/recommendations", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []int64{c, d}, ids(decode[[]domain.Publication](t, resp.Body.Bytes()).Data))

	resp = ts.api.Delete(fmt.Sprintf("/api/v1/favorites/%d", a), bearer(token))
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/recommendations", bearer(token))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []int64{c}, ids(decode[[]domain.Publication](t, resp.Body.Bytes()).Data))

	resp = ts.api.Delete(fmt.Sprintf("/api/v1/favorites/%d", a), bearer(token))
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "FAVORITE_NOT_FOUND", decode[any](t, resp.Body.Bytes()).Error.Code)
}

func TestFavorites_UnknownPublication(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "ada").AccessToken

	resp := ts.api.Post("/api/v1/favorites", bearer(token), map[string]any{"publication_id": 404})
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Publication not found.", decode[any](t, resp.Body.Bytes()).Error.Message)
}

func TestFavorites_Limit(t *testing.T) {
	ts := setupTestServer(t)
	token := ts.registerUser(t, "ada").AccessToken

	for i := range domain.DefaultFavoriteLimit + 1 {
		id := ts.createPublication(t, token, fmt.Sprintf("P%d", i), isbn(i))
		resp := ts.api.Post("/api/v1/favorites", bearer(token), map[string]any{"publication_id": id})
		if i < domain.DefaultFavoriteLimit {
			require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
			continue
		}
		require.Equal(t, http.StatusBadRequest, resp.Code)
		env := decode[any](t, resp.Body.Bytes())
		assert.Equal(t, "FAVORITE_LIMIT", env.Error.Code)
		assert.Equal(t, "You can have a maximum of 20 favorite publications.", env.Error.Message)
	}
}

func TestFavorites_Anonymous(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/favorites")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Get("/api/v1/recommendations")
	require.Equal(t, http.StatusOK, resp.Code)
	env := decode[[]domain.Publication](t, resp.Body.Bytes())
	assert.True(t, env.Success)
	assert.NotNil(t, env.Data)
	assert.Empty(t, env.Data)
}
