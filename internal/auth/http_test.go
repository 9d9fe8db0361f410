// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation, user lookup, and optional auth fallback

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2389/attache/internal/store"
)

var httpTestSecret = []byte("http-middleware-test-secret-32b!")

// mockUserGetter implements UserGetter with a fixed user or error.
type mockUserGetter struct {
	user *store.User
	err  error
}

func (m *mockUserGetter) GetUser(_ context.Context, id string) (*store.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil || m.user.ID != id {
		return nil, store.ErrUserNotFound
	}
	return m.user, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireAuth_ValidToken(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	token, _ := issuer.Issue("user-123", "alice")

	users := &mockUserGetter{
		user: &store.User{ID: "user-123", Username: "alice", DisplayName: "Alice"},
	}

	middleware := RequireAuth(users, issuer, discardLogger())

	var gotIdentity *Identity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotIdentity == nil {
		t.Fatal("expected Identity in context")
	}
	if gotIdentity.User.ID != "user-123" {
		t.Errorf("expected user ID 'user-123', got '%s'", gotIdentity.User.ID)
	}
	if gotIdentity.User.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", gotIdentity.User.Username)
	}
}

func TestRequireAuth_MissingAuthHeader(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	middleware := RequireAuth(&mockUserGetter{}, issuer, discardLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	middleware := RequireAuth(&mockUserGetter{}, issuer, discardLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "no bearer prefix", header: "Basic dXNlcjpwYXNz"},
		{name: "empty token", header: "Bearer "},
		{name: "lowercase scheme", header: "bearer token123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			middleware(handler).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	middleware := RequireAuth(&mockUserGetter{}, issuer, discardLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	expired := NewIssuer(httpTestSecret, -time.Hour)
	token, _ := expired.Issue("user-123", "alice")

	issuer := NewIssuer(httpTestSecret, time.Hour)
	users := &mockUserGetter{
		user: &store.User{ID: "user-123", Username: "alice"},
	}
	middleware := RequireAuth(users, issuer, discardLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_UserNoLongerExists(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	token, _ := issuer.Issue("user-123", "alice")

	// Store has no matching user, as if the account was deleted after issuance.
	middleware := RequireAuth(&mockUserGetter{}, issuer, discardLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	token, _ := issuer.Issue("user-123", "alice")

	users := &mockUserGetter{err: errors.New("database locked")}
	middleware := RequireAuth(users, issuer, discardLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}

func TestOptionalAuth_ValidToken(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	token, _ := issuer.Issue("user-123", "alice")

	users := &mockUserGetter{
		user: &store.User{ID: "user-123", Username: "alice"},
	}
	middleware := OptionalAuth(users, issuer)

	var gotIdentity *Identity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if gotIdentity == nil {
		t.Fatal("expected Identity in context")
	}
	if gotIdentity.User.Username != "alice" {
		t.Errorf("expected username 'alice', got '%s'", gotIdentity.User.Username)
	}
}

func TestOptionalAuth_DegradesToAnonymous(t *testing.T) {
	issuer := NewIssuer(httpTestSecret, time.Hour)
	validToken, _ := issuer.Issue("user-123", "alice")
	expiredToken, _ := NewIssuer(httpTestSecret, -time.Hour).Issue("user-123", "alice")

	tests := []struct {
		name   string
		users  UserGetter
		header string
	}{
		{
			name:  "no header",
			users: &mockUserGetter{},
		},
		{
			name:   "malformed header",
			users:  &mockUserGetter{},
			header: "Basic dXNlcjpwYXNz",
		},
		{
			name:   "invalid token",
			users:  &mockUserGetter{},
			header: "Bearer garbage",
		},
		{
			name:   "expired token",
			users:  &mockUserGetter{user: &store.User{ID: "user-123", Username: "alice"}},
			header: "Bearer " + expiredToken,
		},
		{
			name:   "user no longer exists",
			users:  &mockUserGetter{},
			header: "Bearer " + validToken,
		},
		{
			name:   "store failure",
			users:  &mockUserGetter{err: errors.New("database locked")},
			header: "Bearer " + validToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := OptionalAuth(tt.users, issuer)

			handlerCalled := false
			var gotIdentity *Identity
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				gotIdentity = FromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			middleware(handler).ServeHTTP(rec, req)

			if !handlerCalled {
				t.Fatal("handler was not called")
			}
			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
			if gotIdentity != nil {
				t.Errorf("expected anonymous request, got identity for %q", gotIdentity.User.Username)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   string
	}{
		{
			name:      "valid bearer token",
			header:    "Bearer abc123",
			wantToken: "abc123",
		},
		{
			name:    "empty header",
			header:  "",
			wantErr: "missing authorization header",
		},
		{
			name:    "wrong scheme",
			header:  "Basic abc123",
			wantErr: "invalid authorization header format",
		},
		{
			name:    "bearer with no token",
			header:  "Bearer ",
			wantErr: "empty token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
			if errMsg != tt.wantErr {
				t.Errorf("errMsg = %q, want %q", errMsg, tt.wantErr)
			}
		})
	}
}
