// ABOUTME: HTTP handlers for passkey ceremonies, profile, and logout endpoints
// ABOUTME: Decodes request bodies, maps domain errors to statuses, writes JSON responses

package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/2389/attache/internal/auth"
	"github.com/2389/attache/internal/passkey"
	"github.com/2389/attache/internal/store"
)

// RegisterBeginRequest is the JSON request body for POST /api/auth/register/begin.
type RegisterBeginRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// RegisterCompleteRequest is the JSON request body for POST /api/auth/register/complete.
// Credential carries the authenticator's attestation response verbatim.
type RegisterCompleteRequest struct {
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Email       *string         `json:"email,omitempty"`
	Credential  json.RawMessage `json:"credential"`
}

// LoginBeginRequest is the JSON request body for POST /api/auth/login/begin.
type LoginBeginRequest struct {
	Username string `json:"username"`
}

// LoginCompleteRequest is the JSON request body for POST /api/auth/login/complete.
type LoginCompleteRequest struct {
	Username   string          `json:"username"`
	Credential json.RawMessage `json:"credential"`
}

// UserResponse is the user profile shape shared by the token envelope and
// GET /api/auth/me.
type UserResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email"`
}

// TokenResponse is the session envelope returned by completed ceremonies.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// PasskeyResponse is credential metadata for GET /api/auth/passkeys. The
// private key never leaves the authenticator, so there is no secret to leak
// here, but the public key is omitted anyway: clients only need identity and
// usage data.
type PasskeyResponse struct {
	ID             string   `json:"id"`
	CredentialID   string   `json:"credential_id"`
	Transports     []string `json:"transports"`
	SignCount      uint32   `json:"sign_count"`
	BackupEligible bool     `json:"backup_eligible"`
	BackupState    bool     `json:"backup_state"`
	CreatedAt      string   `json:"created_at"`
	LastUsedAt     *string  `json:"last_used_at"`
}

// ListPasskeysResponse is the JSON response for GET /api/auth/passkeys.
type ListPasskeysResponse struct {
	Passkeys []PasskeyResponse `json:"passkeys"`
}

// LogoutResponse is the JSON response for POST /api/auth/logout.
type LogoutResponse struct {
	Message string `json:"message"`
}

func userResponseFrom(user *store.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}
}

// sendJSON writes a JSON response with the given status code.
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// isDomainError reports whether err is a client-correctable ceremony or
// uniqueness failure, which the API returns as a 400.
func isDomainError(err error) bool {
	return errors.Is(err, passkey.ErrValidation) ||
		errors.Is(err, passkey.ErrUsernameTaken) ||
		errors.Is(err, passkey.ErrUserNotFound) ||
		errors.Is(err, passkey.ErrNoCredentials) ||
		errors.Is(err, passkey.ErrNoCeremony) ||
		errors.Is(err, passkey.ErrCredentialNotFound) ||
		errors.Is(err, passkey.ErrAttestationInvalid) ||
		errors.Is(err, passkey.ErrAssertionInvalid) ||
		errors.Is(err, passkey.ErrCloneDetected) ||
		errors.Is(err, store.ErrEmailExists) ||
		errors.Is(err, store.ErrCredentialExists)
}

// writeServiceError maps a passkey service error to an HTTP response. Domain
// errors surface their message; anything else is logged and returned as an
// opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if isDomainError(err) {
		sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

// recordEvent appends an entry to the auth trail. Failures are logged, never
// surfaced: the ceremony outcome they describe already happened.
func (s *Server) recordEvent(ctx context.Context, e *store.AuthEvent) {
	if err := s.store.RecordAuthEvent(ctx, e); err != nil {
		s.logger.Error("failed to record auth event", "event", e.Event, "username", e.Username, "error", err)
	}
}

// sendTokenEnvelope mints a session token for the user and writes the token
// envelope. Issues happen here rather than in the passkey service so the
// ceremony layer stays independent of session mechanics.
func (s *Server) sendTokenEnvelope(w http.ResponseWriter, user *store.User) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to issue session token", "user_id", user.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sendJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        userResponseFrom(user),
	})
}

// handleRegisterBegin handles POST /api/auth/register/begin.
// Returns the credential creation options for the browser's navigator.credentials.create.
func (s *Server) handleRegisterBegin(w http.ResponseWriter, r *http.Request) {
	var req RegisterBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	options, err := s.passkeys.BeginRegistration(r.Context(), req.Username, req.DisplayName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, options.Response)
}

// handleRegisterComplete handles POST /api/auth/register/complete.
// Verifies the attestation, creates the account, and returns a session token.
func (s *Server) handleRegisterComplete(w http.ResponseWriter, r *http.Request) {
	var req RegisterCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Credential) == 0 {
		sendJSONError(w, http.StatusBadRequest, "credential is required")
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "malformed credential response")
		return
	}

	user, err := s.passkeys.FinishRegistration(r.Context(), req.Username, req.DisplayName, req.Email, parsed)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.recordEvent(r.Context(), &store.AuthEvent{
		UserID:   &user.ID,
		Username: user.Username,
		Event:    store.EventRegister,
		Detail:   map[string]any{"credential_id": base64.RawURLEncoding.EncodeToString(parsed.RawID)},
	})

	s.sendTokenEnvelope(w, user)
}

// handleLoginBegin handles POST /api/auth/login/begin.
// Returns the credential request options for navigator.credentials.get.
func (s *Server) handleLoginBegin(w http.ResponseWriter, r *http.Request) {
	var req LoginBeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	options, err := s.passkeys.BeginLogin(r.Context(), req.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	sendJSON(w, http.StatusOK, options.Response)
}

// handleLoginComplete handles POST /api/auth/login/complete.
// Verifies the assertion and returns a session token.
func (s *Server) handleLoginComplete(w http.ResponseWriter, r *http.Request) {
	var req LoginCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Credential) == 0 {
		sendJSONError(w, http.StatusBadRequest, "credential is required")
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "malformed credential response")
		return
	}

	user, err := s.passkeys.FinishLogin(r.Context(), req.Username, parsed)
	if err != nil {
		// A counter regression means the private key may exist in two
		// places. That is worth a permanent record, not just a log line.
		if errors.Is(err, passkey.ErrCloneDetected) {
			s.recordEvent(r.Context(), &store.AuthEvent{
				Username: req.Username,
				Event:    store.EventLoginDenied,
				Detail: map[string]any{
					"reason":        "clone_detected",
					"credential_id": base64.RawURLEncoding.EncodeToString(parsed.RawID),
				},
			})
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.recordEvent(r.Context(), &store.AuthEvent{
		UserID:   &user.ID,
		Username: user.Username,
		Event:    store.EventLogin,
		Detail:   map[string]any{"credential_id": base64.RawURLEncoding.EncodeToString(parsed.RawID)},
	})

	s.sendTokenEnvelope(w, user)
}

// handleMe handles GET /api/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	sendJSON(w, http.StatusOK, userResponseFrom(identity.User))
}

// handlePasskeys handles GET /api/auth/passkeys.
// Lists the authenticated user's credentials as metadata only.
func (s *Server) handlePasskeys(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	creds, err := s.store.GetCredentialsByUser(r.Context(), identity.User.ID)
	if err != nil {
		s.logger.Error("failed to list credentials", "user_id", identity.User.ID, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ListPasskeysResponse{Passkeys: make([]PasskeyResponse, 0, len(creds))}
	for _, cred := range creds {
		var transports []string
		if err := json.Unmarshal([]byte(cred.Transports), &transports); err != nil || transports == nil {
			transports = []string{}
		}

		var lastUsed *string
		if cred.LastUsedAt != nil {
			formatted := cred.LastUsedAt.UTC().Format(time.RFC3339)
			lastUsed = &formatted
		}

		response.Passkeys = append(response.Passkeys, PasskeyResponse{
			ID:             cred.ID,
			CredentialID:   base64.RawURLEncoding.EncodeToString(cred.CredentialID),
			Transports:     transports,
			SignCount:      cred.SignCount,
			BackupEligible: cred.BackupEligible,
			BackupState:    cred.BackupState,
			CreatedAt:      cred.CreatedAt.UTC().Format(time.RFC3339),
			LastUsedAt:     lastUsed,
		})
	}

	sendJSON(w, http.StatusOK, response)
}

// handleLogout handles POST /api/auth/logout.
// Tokens are stateless, so logout is an acknowledgment: the client discards
// its token. The identity is logged when the request carried a valid one.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if identity := auth.FromContext(r.Context()); identity != nil {
		s.logger.Info("user logged out", "username", identity.User.Username, "user_id", identity.User.ID)
	} else {
		s.logger.Debug("logout without identity")
	}

	sendJSON(w, http.StatusOK, LogoutResponse{Message: "logged out"})
}
