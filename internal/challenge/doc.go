// Package challenge manages the ephemeral state of WebAuthn ceremonies.
//
// A ceremony spans two HTTP requests: begin issues a random challenge the
// authenticator must sign, and complete verifies the signed response against
// it. This package holds that challenge between the two requests, keyed by
// username, with three rules:
//
//   - A username has at most one outstanding challenge. Issuing again
//     replaces the previous one, so only the most recent begin can complete.
//   - Redeem removes the challenge before handing it back. A completion
//     attempt consumes the challenge whether or not verification later
//     succeeds, which makes replaying a signed response impossible.
//   - Challenges expire after a configured TTL and then behave as absent.
//
// Two implementations are provided: MemoryStore for single-process
// deployments, and SQLiteStore, which keeps challenges in the main database
// so any server instance sharing the file can complete a ceremony another
// instance began.
package challenge
