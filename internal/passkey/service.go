// ABOUTME: Passkey ceremony service wiring the WebAuthn library to the store and challenge state
// ABOUTME: Holds relying-party configuration and shared validation for registration and login

package passkey

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/2389/attache/internal/challenge"
	"github.com/2389/attache/internal/store"
)

// Field limits for registration input.
const (
	maxUsernameLen    = 64
	maxDisplayNameLen = 128
)

// Config holds the relying-party identity used for all ceremonies.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// Store is the persistence surface the service needs. *store.SQLiteStore
// satisfies it.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	CreateUserWithCredential(ctx context.Context, user *store.User, cred *store.Credential) error
	GetCredentialsByUser(ctx context.Context, userID string) ([]*store.Credential, error)
	GetUserCredential(ctx context.Context, userID string, credentialID []byte) (*store.Credential, error)
	UpdateCredentialUsage(ctx context.Context, id string, signCount uint32, lastUsedAt time.Time) error
}

// Service runs passkey registration and login ceremonies. Ceremony state
// lives entirely in the challenge store: any process sharing it can complete
// a ceremony another process began.
type Service struct {
	webauthn   *webauthn.WebAuthn
	store      Store
	challenges challenge.Store
	logger     *slog.Logger
}

// NewService creates a passkey service for the given relying party.
func NewService(cfg Config, st Store, challenges challenge.Store) (*Service, error) {
	wconfig := &webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	}

	w, err := webauthn.New(wconfig)
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}

	return &Service{
		webauthn:   w,
		store:      st,
		challenges: challenges,
		logger:     slog.Default().With("component", "passkey"),
	}, nil
}

// normalizeUsername trims and validates a username.
func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(username) > maxUsernameLen {
		return "", fmt.Errorf("%w: username exceeds %d characters", ErrValidation, maxUsernameLen)
	}
	return username, nil
}

// normalizeDisplayName trims and validates a display name, defaulting to the
// username when empty.
func normalizeDisplayName(displayName, username string) (string, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return username, nil
	}
	if len(displayName) > maxDisplayNameLen {
		return "", fmt.Errorf("%w: display name exceeds %d characters", ErrValidation, maxDisplayNameLen)
	}
	return displayName, nil
}

// normalizeEmail trims and validates an optional email. An empty value is
// treated as absent.
func normalizeEmail(email *string) (*string, error) {
	if email == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" {
		return nil, nil
	}
	if !strings.Contains(trimmed, "@") {
		return nil, fmt.Errorf("%w: email is malformed", ErrValidation)
	}
	return &trimmed, nil
}

// sessionChallenge encodes challenge bytes the way client data JSON carries
// them, which is what the library compares against.
func sessionChallenge(chal []byte) string {
	return base64.RawURLEncoding.EncodeToString(chal)
}
