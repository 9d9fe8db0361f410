// ABOUTME: Store interface and data types for attache persistence
// ABOUTME: Defines User, Credential structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a requested user does not exist
var ErrUserNotFound = errors.New("user not found")

// ErrCredentialNotFound is returned when a requested credential does not exist
var ErrCredentialNotFound = errors.New("credential not found")

// ErrUsernameExists is returned when trying to create a user with an existing username
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when trying to create a user with an existing email
var ErrEmailExists = errors.New("email already registered")

// ErrCredentialExists is returned when trying to register a credential that is
// already bound to an account
var ErrCredentialExists = errors.New("credential already registered")

// User represents an account that signs in with passkeys.
// Email is optional; usernames and emails are unique.
type User struct {
	ID          string
	Username    string
	DisplayName string
	Email       *string
	CreatedAt   time.Time
}

// Credential represents a passkey bound to a user. CredentialID is the
// authenticator-assigned identifier; ID is the row identifier.
// BackupEligible and BackupState record the authenticator flags captured at
// registration; assertion verification checks them for consistency.
type Credential struct {
	ID              string
	UserID          string
	CredentialID    []byte
	PublicKey       []byte
	AttestationType string
	Transports      string // JSON array of transport hints
	SignCount       uint32
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}

// Store defines the interface for user and credential persistence
type Store interface {
	// Users
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	CountUsers(ctx context.Context) (int, error)

	// CreateUserWithCredential creates a user and their first credential in
	// one transaction. There is no standalone user creation: an account only
	// exists once a passkey attests for it.
	CreateUserWithCredential(ctx context.Context, user *User, cred *Credential) error

	// Credentials
	GetCredentialsByUser(ctx context.Context, userID string) ([]*Credential, error)
	GetUserCredential(ctx context.Context, userID string, credentialID []byte) (*Credential, error)
	UpdateCredentialUsage(ctx context.Context, id string, signCount uint32, lastUsedAt time.Time) error

	// Auth trail
	RecordAuthEvent(ctx context.Context, e *AuthEvent) error
	ListAuthEvents(ctx context.Context, f AuthEventFilter) ([]AuthEvent, error)

	// Close releases any resources held by the store
	Close() error
}
