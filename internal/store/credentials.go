// ABOUTME: Credential store methods for passkey lookup and usage tracking
// ABOUTME: Sign count and last-used timestamp always move together in one statement

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCredentialsByUser retrieves all credentials for a user, oldest first.
// Returns an empty slice when the user has none.
func (s *SQLiteStore) GetCredentialsByUser(ctx context.Context, userID string) ([]*Credential, error) {
	query := `
		SELECT id, user_id, credential_id, public_key, attestation_type, transports, sign_count, backup_eligible, backup_state, created_at, last_used_at
		FROM credentials
		WHERE user_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*Credential
	for rows.Next() {
		var cred Credential
		var createdAtStr string
		var lastUsedAtStr sql.NullString

		if err := rows.Scan(
			&cred.ID,
			&cred.UserID,
			&cred.CredentialID,
			&cred.PublicKey,
			&cred.AttestationType,
			&cred.Transports,
			&cred.SignCount,
			&cred.BackupEligible,
			&cred.BackupState,
			&createdAtStr,
			&lastUsedAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}

		cred.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if lastUsedAtStr.Valid {
			t, err := time.Parse(time.RFC3339, lastUsedAtStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing last_used_at: %w", err)
			}
			cred.LastUsedAt = &t
		}

		creds = append(creds, &cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credentials: %w", err)
	}

	return creds, nil
}

// GetUserCredential retrieves a credential by its authenticator-assigned ID,
// scoped to the given user. Returns ErrCredentialNotFound if no such
// credential belongs to the user.
func (s *SQLiteStore) GetUserCredential(ctx context.Context, userID string, credentialID []byte) (*Credential, error) {
	query := `
		SELECT id, user_id, credential_id, public_key, attestation_type, transports, sign_count, backup_eligible, backup_state, created_at, last_used_at
		FROM credentials
		WHERE user_id = ? AND credential_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, userID, credentialID)
	return scanCredentialRow(row)
}

func scanCredentialRow(row *sql.Row) (*Credential, error) {
	var cred Credential
	var createdAtStr string
	var lastUsedAtStr sql.NullString

	err := row.Scan(
		&cred.ID,
		&cred.UserID,
		&cred.CredentialID,
		&cred.PublicKey,
		&cred.AttestationType,
		&cred.Transports,
		&cred.SignCount,
		&cred.BackupEligible,
		&cred.BackupState,
		&createdAtStr,
		&lastUsedAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning credential: %w", err)
	}

	cred.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if lastUsedAtStr.Valid {
		t, err := time.Parse(time.RFC3339, lastUsedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		cred.LastUsedAt = &t
	}

	return &cred, nil
}

// UpdateCredentialUsage records a successful assertion: the new sign count
// and the last-used timestamp are written in a single statement so they can
// never diverge. Returns ErrCredentialNotFound if the credential is gone.
func (s *SQLiteStore) UpdateCredentialUsage(ctx context.Context, id string, signCount uint32, lastUsedAt time.Time) error {
	query := `UPDATE credentials SET sign_count = ?, last_used_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		signCount,
		lastUsedAt.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating credential usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCredentialNotFound
	}

	s.logger.Debug("updated credential usage", "id", id, "sign_count", signCount)
	return nil
}
