// ABOUTME: Domain errors for passkey registration and login ceremonies
// ABOUTME: Sentinels that the HTTP layer maps onto status codes

package passkey

import "errors"

// Ceremony errors. All of these describe client-correctable conditions; the
// HTTP layer returns them as 400 responses with the error message as detail.
var (
	// ErrValidation wraps rejected request fields (empty username, oversized
	// display name, malformed email).
	ErrValidation = errors.New("invalid request")

	// ErrUsernameTaken is returned when registering a username that exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrUserNotFound is returned when logging in with an unknown username,
	// or when the account disappears between begin and complete.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoCredentials is returned when a login begins for a user with no
	// registered passkeys.
	ErrNoCredentials = errors.New("no passkeys registered for user")

	// ErrNoCeremony is returned when completing a ceremony with no
	// outstanding challenge: none was issued, it expired, or it was already
	// consumed.
	ErrNoCeremony = errors.New("no ceremony in progress")

	// ErrCredentialNotFound is returned when an assertion names a credential
	// that does not belong to the user.
	ErrCredentialNotFound = errors.New("credential not recognized")

	// ErrAttestationInvalid is returned when attestation verification fails.
	ErrAttestationInvalid = errors.New("attestation verification failed")

	// ErrAssertionInvalid is returned when assertion verification fails.
	ErrAssertionInvalid = errors.New("assertion verification failed")

	// ErrCloneDetected is returned when an assertion's sign count has not
	// advanced past the stored one. A non-incrementing counter signals a
	// cloned authenticator; the ceremony is rejected and nothing persists.
	ErrCloneDetected = errors.New("possible cloned authenticator detected")
)
