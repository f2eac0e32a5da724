package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/recommend"
	"github.com/librisapp/libris-server/internal/search"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/store/sqlite"
	"github.com/librisapp/libris-server/internal/validation"
)

// testEnvelope decodes the response envelope around data of type T.
type testEnvelope[T any] struct {
	Version int       `json:"v"`
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *APIError `json:"error"`
}

type testServer struct {
	*Server
	api   humatest.TestAPI
	store *sqlite.Store
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{Version: "test"})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "libris.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.Open(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	v := validation.New()
	hasher := auth.NewPasswordHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	sessions := service.NewSessionService(st, tokens, logger)
	engine := recommend.NewEngine(st, nil, recommend.Options{}, logger)

	services := &Services{
		Auth:      service.NewAuthService(st, tokens, hasher, sessions, v, logger),
		Catalog:   service.NewCatalogService(st, idx, v, logger),
		Favorites: service.NewFavoriteService(st, engine, domain.DefaultFavoriteLimit, logger),
	}

	srv := NewServer(services, Backends{Store: st, Search: idx}, opts, logger)
	t.Cleanup(srv.Close)

	return &testServer{
		Server: srv,
		api:    humatest.Wrap(t, srv.API()),
		store:  st,
	}
}

// registerUser creates an account and returns its tokens.
func (ts *testServer) registerUser(t *testing.T, username string) AuthResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username":         username,
		"email":            username + "@example.com",
		"password":         "correct-horse",
		"password_confirm": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.Code, "register failed: %s", resp.Body.String())

	env := decode[AuthResponse](t, resp.Body.Bytes())
	return env.Data
}

// createPublication posts a publication as the token holder and returns its ID.
func (ts *testServer) createPublication(t *testing.T, token, title, isbn string) int64 {
	t.Helper()

	resp := ts.api.Post("/api/v1/publications", bearer(token), map[string]any{
		"title": title,
		"isbn":  isbn,
	})
	require.Equal(t, http.StatusCreated, resp.Code, "create failed: %s", resp.Body.String())

	env := decode[domain.Publication](t, resp.Body.Bytes())
	return env.Data.ID
}

func (ts *testServer) addEdges(t *testing.T, edges ...domain.SimilarityEdge) {
	t.Helper()
	_, err := ts.store.UpsertSimilarities(context.Background(), edges)
	require.NoError(t, err)
}

func bearer(token string) string {
	return "Authorization: Bearer " + token
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return env
}

func isbn(i int) string {
	return fmt.Sprintf("978%010d", i)
}
