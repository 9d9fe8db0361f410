// Package auth provides session token issuance and HTTP authentication
// middleware for attaché.
//
// # Tokens
//
// Sessions are represented as HS256 signed JWTs minted by an [Issuer] after a
// successful passkey ceremony. Tokens carry the user ID in the "sub" claim and
// the username in the "username" claim, plus standard "iat" and "exp" claims.
// The token lifetime is configurable and defaults to seven days.
//
// Tokens are stateless: the server keeps no session table, and logout is a
// client-side operation (discard the token).
//
// # Middleware
//
// Two HTTP middleware constructors wrap handlers:
//
//   - RequireAuth: rejects the request with 401 unless a valid bearer token
//     resolves to an existing user. The resolved user is attached to the
//     request context as an [Identity].
//
//   - OptionalAuth: attempts the same resolution but degrades to anonymous on
//     any failure. Handlers check FromContext for nil to distinguish the two.
//
// Both resolve the token subject against the user store on every request, so a
// deleted user's outstanding tokens stop working immediately.
//
// # Context
//
// Handlers retrieve the authenticated user with:
//
//	identity := auth.FromContext(r.Context())
//	if identity == nil {
//		// anonymous request
//	}
package auth
