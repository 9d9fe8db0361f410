// ABOUTME: User store methods including atomic user+credential creation
// ABOUTME: An account only exists once its first passkey is stored alongside it

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetUser retrieves a user by ID.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, username, display_name, email, created_at
		FROM users
		WHERE id = ?
	`

	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
// Returns ErrUserNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, display_name, email, created_at
		FROM users
		WHERE username = ?
	`

	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var email sql.NullString
	var createdAtStr string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&email,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if email.Valid {
		user.Email = &email.String
	}
	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// UsernameExists reports whether a user with the given username exists.
func (s *SQLiteStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}

	return true, nil
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// CreateUserWithCredential creates a user and their first credential in one
// transaction. If either insert fails the transaction is rolled back, so no
// user row is ever left without a credential. Unique violations map to
// ErrUsernameExists, ErrEmailExists, or ErrCredentialExists.
func (s *SQLiteStore) CreateUserWithCredential(ctx context.Context, user *User, cred *Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var email any
	if user.Email != nil {
		email = *user.Email
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		user.ID,
		user.Username,
		user.DisplayName,
		email,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return mapUniqueConstraintError(err)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO credentials (id, user_id, credential_id, public_key, attestation_type, transports, sign_count, backup_eligible, backup_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cred.ID,
		cred.UserID,
		cred.CredentialID,
		cred.PublicKey,
		cred.AttestationType,
		cred.Transports,
		cred.SignCount,
		cred.BackupEligible,
		cred.BackupState,
		cred.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return mapUniqueConstraintError(err)
		}
		return fmt.Errorf("inserting credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user creation: %w", err)
	}

	s.logger.Info("created user with credential", "id", user.ID, "username", user.Username)
	return nil
}
