// Package middleware provides the HTTP request pipeline pieces: bearer-token
// authentication and per-key rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pairchat/pairchat/internal/auth"
)

// userContextKey is the context key under which the authenticated user id
// is stored for handlers.
type userContextKey struct{}

// UserID extracts the authenticated user id from a request context.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userContextKey{})
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// WithUserID returns a context carrying the given user id. Exported for
// handler tests that bypass the middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// Auth returns middleware that enforces a valid "Authorization: Bearer"
// token on every request and injects the token's user id into the request
// context. Requests without a valid token get 401 with a stable error body.
func Auth(j *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "missing authorization header")
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
			if token == "" {
				unauthorized(w, "invalid token")
				return
			}

			claims, err := j.VerifyToken(token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	// No internal detail leaks to the client; the body shape matches the
	// handlers' error responses.
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
