package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/courteous/edge-consult-backend/internal/auth"
	"github.com/courteous/edge-consult-backend/internal/httpx"
)

type contextKey struct{}

var identityKey contextKey

// Identity returns the claims RequireAuth attached to the request
// context, or nil outside an authenticated route.
func Identity(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(identityKey).(*auth.Claims)
	return claims
}

// WithIdentity returns a context carrying the given claims.
func WithIdentity(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, identityKey, claims)
}

// RequireAuth validates the bearer token and injects the decoded identity
// into the request context. The token is read from the Authorization
// header or, as a fallback, the x-auth-token header.
func RequireAuth(tokens *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.Message(w, http.StatusUnauthorized, "No authentication token, authorization denied.")
				return
			}

			claims, err := tokens.Verify(token)
			if errors.Is(err, auth.ErrNoSecret) {
				log.Error().Msg("JWT_SECRET is not configured")
				httpx.Message(w, http.StatusInternalServerError, "Server configuration error: authentication secret is missing.")
				return
			}
			if err != nil {
				httpx.Message(w, http.StatusUnauthorized, "Authentication token is invalid or has expired.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("x-auth-token"))
}
