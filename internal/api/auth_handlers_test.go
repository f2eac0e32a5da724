package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Success(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"username":         "ada",
		"email":            "ada@example.com",
		"password":         "correct-horse",
		"password_confirm": "correct-horse",
		"first_name":       "Ada",
		"last_name":        "Lovelace",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	env := decode[AuthResponse](t, resp.Body.Bytes())
	assert.Equal(t, 1, env.Version)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data.AccessToken)
	assert.NotEmpty(t, env.Data.RefreshToken)
	assert.Equal(t, "Bearer", env.Data.TokenType)
	assert.Positive(t, env.Data.ExpiresIn)
	assert.Equal(t, "ada", env.Data.User.Username)
	assert.Equal(t, "Lovelace", env.Data.User.LastName)
}

func TestRegister_Errors(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "ada")

	tests := []struct {
		name     string
		body     map[string]any
		status   int
		code     string
		contains string
	}{
		{
			name: "password mismatch",
			body: map[string]any{
				"username": "bob", "email": "bob@example.com",
				"password": "correct-horse", "password_confirm": "battery-staple",
			},
			status:   http.StatusBadRequest,
			code:     "VALIDATION",
			contains: "Password fields didn't match.",
		},
		{
			name: "duplicate username",
			body: map[string]any{
				"username": "ada", "email": "other@example.com",
				"password": "correct-horse", "password_confirm": "correct-horse",
			},
			status: http.StatusConflict,
			code:   "ALREADY_EXISTS",
		},
		{
			name: "invalid email",
			body: map[string]any{
				"username": "carol", "email": "not-an-email",
				"password": "correct-horse", "password_confirm": "correct-horse",
			},
			status: http.StatusBadRequest,
			code:   "VALIDATION",
		},
		{
			name:   "missing fields",
			body:   map[string]any{"username": "dave"},
			status: http.StatusUnprocessableEntity,
			code:   "VALIDATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/auth/register", tt.body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())

			env := decode[any](t, resp.Body.Bytes())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			if tt.contains != "" {
				assert.Contains(t, env.Error.Message, tt.contains)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t)
	ts.registerUser(t, "ada")

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"username": "ada@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decode[AuthResponse](t, resp.Body.Bytes())
	assert.Equal(t, "ada", env.Data.User.Username)

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"username": "ada",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[any](t, resp.Body.Bytes()).Error.Code)
}

func TestMe_RequiresToken(t *testing.T) {
	ts := setupTestServer(t)
	tokens := ts.registerUser(t, "ada")

	resp := ts.api.Get("/api/v1/auth/me")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Get("/api/v1/auth/me", "Authorization: Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Get("/api/v1/auth/me", bearer(tokens.AccessToken))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decode[UserResponse](t, resp.Body.Bytes())
	assert.Equal(t, tokens.User.ID, env.Data.ID)
}

func TestRefreshAndLogout(t *testing.T) {
	ts := setupTestServer(t)
	tokens := ts.registerUser(t, "ada")

	resp := ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	refreshed := decode[AuthResponse](t, resp.Body.Bytes()).Data
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	// The old refresh token was rotated away.
	resp = ts.api.Post("/api/v1/auth/refresh", map[string]any{"refresh_token": tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ts.api.Post("/api/v1/auth/logout", bearer(refreshed.AccessToken))
	require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/auth/me", bearer(refreshed.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, resp.Code, "logout revokes the access token")
}

func TestAuthRateLimit(t *testing.T) {
	ts := setupTestServerWithOptions(t, Options{LoginRatePerMinute: 2})

	body := map[string]any{"username": "nobody", "password": "whatever-pass"}
	for range 2 {
		resp := ts.api.Post("/api/v1/auth/login", body)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := ts.api.Post("/api/v1/auth/login", body)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "RATE_LIMITED", decode[any](t, resp.Body.Bytes()).Error.Code)

	// Another client has its own budget.
	resp = ts.api.Post("/api/v1/auth/login", "X-Forwarded-For: 203.0.113.7", body)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
