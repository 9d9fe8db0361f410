// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/credential persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			username     TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			email        TEXT UNIQUE,
			created_at   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);

		CREATE TABLE IF NOT EXISTS credentials (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			credential_id    BLOB NOT NULL UNIQUE,
			public_key       BLOB NOT NULL,
			attestation_type TEXT NOT NULL DEFAULT '',
			transports       TEXT NOT NULL DEFAULT '[]',
			sign_count       INTEGER NOT NULL DEFAULT 0,
			backup_eligible  INTEGER NOT NULL DEFAULT 0,
			backup_state     INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL,
			last_used_at     TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_credentials_user_id ON credentials(user_id);

		CREATE TABLE IF NOT EXISTS auth_events (
			event_id    TEXT PRIMARY KEY,
			user_id     TEXT,
			username    TEXT NOT NULL,
			event       TEXT NOT NULL,
			detail_json TEXT,
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_auth_events_username ON auth_events(username);
		CREATE INDEX IF NOT EXISTS idx_auth_events_created_at ON auth_events(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// Migration: add last_used_at to credentials created before the column
	// existed. SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check
	// pragma_table_info first.
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('credentials') WHERE name = 'last_used_at'`).Scan(&exists)
	if err != nil {
		if _, err := s.db.Exec(`ALTER TABLE credentials ADD COLUMN last_used_at TEXT`); err != nil {
			return fmt.Errorf("adding last_used_at column to credentials: %w", err)
		}
		s.logger.Info("applied migration", "column", "last_used_at", "table", "credentials")
	}

	// Migration: backup flags for credentials stored before flag tracking.
	err = s.db.QueryRow(`SELECT 1 FROM pragma_table_info('credentials') WHERE name = 'backup_eligible'`).Scan(&exists)
	if err != nil {
		if _, err := s.db.Exec(`ALTER TABLE credentials ADD COLUMN backup_eligible INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("adding backup_eligible column to credentials: %w", err)
		}
		if _, err := s.db.Exec(`ALTER TABLE credentials ADD COLUMN backup_state INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("adding backup_state column to credentials: %w", err)
		}
		s.logger.Info("applied migration", "column", "backup_eligible", "table", "credentials")
	}

	return nil
}

// DB exposes the underlying database handle so companion stores (such as the
// challenge store) can share the same connection pool and file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "unique constraint"))
}

// mapUniqueConstraintError translates a SQLite unique violation into the
// matching sentinel error based on the column named in the message.
func mapUniqueConstraintError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return ErrUsernameExists
	case strings.Contains(msg, "users.email"):
		return ErrEmailExists
	case strings.Contains(msg, "credentials.credential_id"):
		return ErrCredentialExists
	}
	return err
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
