// Package store provides persistent storage for attaché using SQLite.
//
// # Architecture
//
// The package defines a single Store interface covering users and their
// passkey credentials. SQLiteStore implements it on modernc.org/sqlite.
// Consumers depend on the interface so tests can substitute fakes.
//
// # Data Models
//
//   - User: An account identified by a unique username. Email is optional
//     and unique when present. Users authenticate only with passkeys.
//   - Credential: A passkey bound to a user. CredentialID holds the
//     authenticator-assigned identifier; PublicKey the COSE public key;
//     SignCount the authenticator's signature counter; Transports a JSON
//     array of transport hints for the browser.
//   - AuthEvent: An entry in the sign-in audit trail. Registrations,
//     logins, and denied attempts are recorded with optional JSON detail.
//     Events carry no foreign key so they survive account deletion.
//
// # Account Creation
//
// There is no standalone user insert. CreateUserWithCredential writes the
// user and their first credential in one transaction, so an account can
// never exist without a passkey to sign in with.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC strings. The underlying *sql.DB is
// exposed through DB() so companion stores (the challenge store) can share
// the same database file.
//
// # Error Handling
//
// Common errors:
//
//   - ErrUserNotFound: Requested user does not exist
//   - ErrCredentialNotFound: Requested credential does not exist
//   - ErrUsernameExists: Username already taken
//   - ErrEmailExists: Email already registered
//   - ErrCredentialExists: Passkey already bound to an account
//
// All methods accept context.Context for cancellation support.
package store
