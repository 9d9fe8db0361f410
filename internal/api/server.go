// ABOUTME: HTTP server for the passkey authentication API
// ABOUTME: Wires routes, auth middleware, and rate limiting over http.ServeMux

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/attache/internal/auth"
	"github.com/2389/attache/internal/passkey"
	"github.com/2389/attache/internal/store"
)

// Config holds API server configuration.
type Config struct {
	// Addr is the listen address, e.g. "localhost:8080".
	Addr string

	// RateLimitPerMinute caps ceremony requests per client IP. Zero
	// disables limiting.
	RateLimitPerMinute int
}

// Store is the subset of store operations the API layer touches directly:
// the auth middleware resolves token subjects, the passkey listing reads
// credential metadata, and completed ceremonies land in the auth trail.
// Everything else goes through the passkey service.
type Store interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetCredentialsByUser(ctx context.Context, userID string) ([]*store.Credential, error)
	RecordAuthEvent(ctx context.Context, e *store.AuthEvent) error
}

// Server serves the authentication API over HTTP.
type Server struct {
	config     Config
	store      Store
	passkeys   *passkey.Service
	tokens     *auth.Issuer
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates an API server. The issuer both mints session tokens on
// successful ceremonies and verifies them in the auth middleware.
func NewServer(cfg Config, st Store, passkeys *passkey.Service, tokens *auth.Issuer) *Server {
	s := &Server{
		config:   cfg,
		store:    st,
		passkeys: passkeys,
		tokens:   tokens,
		logger:   slog.Default().With("component", "api"),
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// RegisterRoutes registers all API routes on the given mux. Ceremony
// endpoints are public but rate-limited per client IP; profile endpoints
// require a valid bearer token.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	limited := rateLimitByIP(s.config.RateLimitPerMinute, s.logger)
	requireAuth := auth.RequireAuth(s.store, s.tokens, s.logger)
	optionalAuth := auth.OptionalAuth(s.store, s.tokens)

	mux.Handle("POST /api/auth/register/begin", limited(http.HandlerFunc(s.handleRegisterBegin)))
	mux.Handle("POST /api/auth/register/complete", limited(http.HandlerFunc(s.handleRegisterComplete)))
	mux.Handle("POST /api/auth/login/begin", limited(http.HandlerFunc(s.handleLoginBegin)))
	mux.Handle("POST /api/auth/login/complete", limited(http.HandlerFunc(s.handleLoginComplete)))

	mux.Handle("GET /api/auth/me", requireAuth(http.HandlerFunc(s.handleMe)))
	mux.Handle("GET /api/auth/passkeys", requireAuth(http.HandlerFunc(s.handlePasskeys)))
	mux.Handle("POST /api/auth/logout", optionalAuth(http.HandlerFunc(s.handleLogout)))

	mux.HandleFunc("GET /health", s.handleHealth)

	s.logger.Info("auth API routes registered")
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The original context is already canceled at this point, so shutdown
	// runs on a fresh one with its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
