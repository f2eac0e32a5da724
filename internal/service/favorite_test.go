package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/domain"
	domainerrors "github.com/librisapp/libris-server/internal/errors"
)

func TestAddFavorite_ReturnsRecommendations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada").User

	ids := env.addPublications(t, 4)
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]
	_, err := env.store.UpsertSimilarities(ctx, []domain.SimilarityEdge{
		{Origin: a, Destination: c, Score: 0.6},
		{Origin: b, Destination: c, Score: 0.5},
		{Origin: a, Destination: d, Score: 0.9},
		{Origin: b, Destination: b, Score: 1},
		{Origin: a, Destination: b, Score: 2},
	})
	require.NoError(t, err)

	_, recs, err := env.favorites.AddFavorite(ctx, user.ID, a)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int64{b, d, c}, pubIDs(recs))

	fav, recs, err := env.favorites.AddFavorite(ctx, user.ID, b)
	require.NoError(t, err)
	assert.Equal(t, b, fav.PublicationID)
	assert.Equal(t, []int64{c, d}, pubIDs(recs), "favorites never recommended; c sums to 1.1")

	cached, err := env.favorites.Recommendations(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, pubIDs(recs), pubIDs(cached))

	favs, err := env.favorites.ListFavorites(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a}, pubIDs(favs), "newest first")
}

func TestAddFavorite_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada").User
	ids := env.addPublications(t, 1)

	_, _, err := env.favorites.AddFavorite(ctx, user.ID, ids[0])
	require.NoError(t, err)

	_, _, err = env.favorites.AddFavorite(ctx, user.ID, ids[0])
	var derr *domainerrors.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeDuplicateFavorite, derr.Code)
	assert.Equal(t, "This publication is already in your favorites.", derr.Message)

	_, _, err = env.favorites.AddFavorite(ctx, user.ID, ids[0]+999)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	n, err := env.store.CountFavorites(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _, err = env.favorites.AddFavorite(ctx, "usr-deleted", ids[0])
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeUnauthorized, derr.Code)
	assert.Equal(t, "User account no longer exists.", derr.Message)
}

func TestAddFavorite_Limit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada").User
	ids := env.addPublications(t, domain.DefaultFavoriteLimit+1)

	for _, pid := range ids[:domain.DefaultFavoriteLimit] {
		_, _, err := env.favorites.AddFavorite(ctx, user.ID, pid)
		require.NoError(t, err)
	}

	_, _, err := env.favorites.AddFavorite(ctx, user.ID, ids[domain.DefaultFavoriteLimit])
	var derr *domainerrors.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeFavoriteLimit, derr.Code)
	assert.Equal(t, "You can have a maximum of 20 favorite publications.", derr.Message)

	n, err := env.store.CountFavorites(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFavoriteLimit, n)
}

func TestRemoveFavorite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada").User
	ids := env.addPublications(t, 2)

	_, err := env.store.UpsertSimilarities(ctx, []domain.SimilarityEdge{{Origin: ids[0], Destination: ids[1], Score: 0.5}})
	require.NoError(t, err)
	_, recs, err := env.favorites.AddFavorite(ctx, user.ID, ids[0])
	require.NoError(t, err)
	require.Len(t, recs, 1)

	err = env.favorites.RemoveFavorite(ctx, user.ID, ids[1])
	assert.ErrorIs(t, err, domainerrors.ErrFavoriteNotFound)

	require.NoError(t, env.favorites.RemoveFavorite(ctx, user.ID, ids[0]))

	recs, err = env.favorites.Recommendations(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecommendations_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	recs, err := env.favorites.Recommendations(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, domain.DefaultFavoriteLimit, env.favorites.Limit())
}

func pubIDs(pubs []*domain.Publication) []int64 {
	out := make([]int64, len(pubs))
	for i, p := range pubs {
		out[i] = p.ID
	}
	return out
}
