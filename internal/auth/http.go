// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts bearer tokens, resolves the user, and adds Identity to context

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/attache/internal/store"
)

// UserGetter resolves token subjects to user records.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// RequireAuth creates an HTTP middleware that extracts and validates bearer
// tokens. It resolves the token subject to a user record and adds an Identity
// to the request context. Requests fail with 401 when the token is missing,
// malformed, invalid, expired, or references a user that no longer exists.
func RequireAuth(users UserGetter, verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("token verification failed", "error", err)
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetUser(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					// Token subject deleted since issuance. The token itself
					// was validly signed, so log at debug rather than warn.
					logger.Debug("token subject no longer exists", "user_id", claims.UserID)
					http.Error(w, `{"error":"unknown user"}`, http.StatusUnauthorized)
					return
				}
				logger.Error("failed to resolve token subject", "user_id", claims.UserID, "error", err)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			identity := &Identity{User: user, Claims: claims}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth creates an HTTP middleware that attempts bearer token auth but
// allows unauthenticated requests. Every failure degrades to anonymous: the
// handler runs with no Identity in context and never sees an auth error.
func OptionalAuth(users UserGetter, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), claims.UserID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			identity := &Identity{User: user, Claims: claims}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
