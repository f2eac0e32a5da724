package api

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librisapp/libris-server/internal/service"
)

type ctxKey string

const (
	userIDKey    ctxKey = "user_id"
	sessionIDKey ctxKey = "session_id"
	clientKey    ctxKey = "client"
)

// GetUserID returns the authenticated user ID or a 401.
func GetUserID(ctx context.Context) (string, error) {
	userID := optionalUserID(ctx)
	if userID == "" {
		return "", huma.Error401Unauthorized("Authentication credentials were not provided.")
	}
	return userID, nil
}

// optionalUserID returns the authenticated user ID, or "" for anonymous requests.
func optionalUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func getSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionIDKey).(string)
	return sessionID
}

func clientInfo(ctx context.Context) service.ClientInfo {
	info, _ := ctx.Value(clientKey).(service.ClientInfo)
	return info
}

// authMiddleware resolves Bearer tokens into a user ID on the request
// context. Requests without a valid token continue anonymously; handlers
// that need a user call GetUserID.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientKey, service.ClientInfo{
				IPAddress: getClientIP(r),
				UserAgent: r.UserAgent(),
			})

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && token != "" {
				if user, claims, err := auth.VerifyAccessToken(ctx, token); err == nil {
					ctx = context.WithValue(ctx, userIDKey, user.ID)
					ctx = context.WithValue(ctx, sessionIDKey, claims.SessionID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// getClientIP prefers proxy headers, then RemoteAddr without the port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
