// Package passkey implements WebAuthn registration and login ceremonies for
// attaché accounts.
//
// # Ceremonies
//
// Both ceremonies follow the same two-step shape. Begin validates the
// request, issues a challenge through the challenge store, and returns the
// options object the browser hands to navigator.credentials. Finish redeems
// the challenge, verifies the authenticator's response against it with
// go-webauthn, and persists the outcome.
//
// Registration is the only way accounts come into existence: on a verified
// attestation the user row and the first credential row are created in a
// single transaction, so there is never a user without a passkey.
//
// Login resolves the asserted credential scoped to the user, verifies the
// assertion, and enforces the sign count rule: the authenticator's counter
// must be strictly greater than the stored one unless both are zero.
// A non-advancing counter fails the ceremony with ErrCloneDetected and
// persists nothing.
//
// # Ceremony State
//
// The only state between begin and finish is the challenge in the challenge
// store, keyed by username. A second begin for the same username replaces
// the outstanding challenge, and every finish consumes it exactly once
// whether or not verification succeeds. With a database-backed challenge
// store the finish may be served by a different process than the begin.
//
// # User Handles
//
// The WebAuthn user handle is the username bytes. Usernames are immutable,
// so the handle stays stable across registration and every later login, and
// authenticators that return a user handle in assertions are checked against
// it.
package passkey
