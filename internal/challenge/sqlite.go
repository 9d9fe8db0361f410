// ABOUTME: SQLite-backed challenge store sharing the main database file
// ABOUTME: Survives restarts and serves multiple server instances at once

package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteStore persists challenges in a table on an existing database handle,
// typically the one behind the user store. Because redeeming is a
// transactional select+delete, several server processes can share one
// database and any of them can complete a ceremony another began.
type SQLiteStore struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewSQLiteStore creates the challenge table if needed and returns a store
// whose challenges expire after ttl.
func NewSQLiteStore(db *sql.DB, ttl time.Duration) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "challenge")

	schema := `
		CREATE TABLE IF NOT EXISTS webauthn_challenges (
			username   TEXT PRIMARY KEY,
			challenge  BLOB NOT NULL,
			expires_at TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating challenge schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Issue creates a fresh challenge for the username, replacing any
// outstanding one.
func (s *SQLiteStore) Issue(ctx context.Context, username string) ([]byte, error) {
	chal, err := newChallenge()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT OR REPLACE INTO webauthn_challenges (username, challenge, expires_at)
		VALUES (?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		username,
		chal,
		time.Now().Add(s.ttl).UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}

	s.logger.Debug("issued challenge", "username", username)
	return chal, nil
}

// Redeem removes and returns the outstanding challenge for the username.
// The row is deleted even when it turns out to be expired, so a stale
// ceremony never blocks a later one.
func (s *SQLiteStore) Redeem(ctx context.Context, username string) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var chal []byte
	var expiresAtStr string
	err = tx.QueryRowContext(ctx,
		`SELECT challenge, expires_at FROM webauthn_challenges WHERE username = ?`,
		username,
	).Scan(&chal, &expiresAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("querying challenge: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM webauthn_challenges WHERE username = ?`, username,
	); err != nil {
		return nil, fmt.Errorf("deleting challenge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing redeem: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, ErrNoChallenge
	}

	s.logger.Debug("redeemed challenge", "username", username)
	return chal, nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
