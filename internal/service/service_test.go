package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/domain"
	"github.com/librisapp/libris-server/internal/recommend"
	"github.com/librisapp/libris-server/internal/search"
	"github.com/librisapp/libris-server/internal/store/sqlite"
	"github.com/librisapp/libris-server/internal/validation"
)

type testEnv struct {
	store     *sqlite.Store
	index     *search.Index
	tokens    *auth.TokenService
	auth      *AuthService
	sessions  *SessionService
	catalog   *CatalogService
	favorites *FavoriteService
	engine    *recommend.Engine
}

func newTestEnv(t *testing.T) *testEnv {
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
	sessions := NewSessionService(st, tokens, logger)
	engine := recommend.NewEngine(st, nil, recommend.Options{}, logger)

	return &testEnv{
		store:     st,
		index:     idx,
		tokens:    tokens,
		auth:      NewAuthService(st, tokens, hasher, sessions, v, logger),
		sessions:  sessions,
		catalog:   NewCatalogService(st, idx, v, logger),
		favorites: NewFavoriteService(st, engine, domain.DefaultFavoriteLimit, logger),
		engine:    engine,
	}
}

func (e *testEnv) register(t *testing.T, username string) *AuthResponse {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), RegisterRequest{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "correct-horse",
		PasswordConfirm: "correct-horse",
	}, ClientInfo{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return resp
}

// addPublications creates n publications with distinct ISBNs and returns their IDs.
func (e *testEnv) addPublications(t *testing.T, n int) []int64 {
	t.Helper()
	ids := make([]int64, n)
	for i := range n {
		p, err := e.catalog.CreatePublication(context.Background(), PublicationRequest{
			Title: "Publication " + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			ISBN:  isbnFor(i),
		})
		require.NoError(t, err)
		ids[i] = p.ID
	}
	return ids
}

func isbnFor(i int) string {
	const digits = "0123456789"
	b := []byte("9780000000000")
	for pos, n := len(b)-1, i; n > 0 && pos >= 3; pos, n = pos-1, n/10 {
		b[pos] = digits[n%10]
	}
	return string(b)
}
