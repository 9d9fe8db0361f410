// ABOUTME: Package documentation for the HTTP API layer
// ABOUTME: Describes routes, auth boundaries, and error mapping

// Package api serves the passkey authentication HTTP surface.
//
// # Routes
//
// Ceremony endpoints are public and rate-limited per client IP:
//
//	POST /api/auth/register/begin
//	POST /api/auth/register/complete
//	POST /api/auth/login/begin
//	POST /api/auth/login/complete
//
// Completed ceremonies return a token envelope: the session JWT, the literal
// token type "bearer", and the user profile. Profile endpoints require that
// token:
//
//	GET /api/auth/me
//	GET /api/auth/passkeys
//
// POST /api/auth/logout accepts but does not require a token, and GET /health
// is a bare liveness probe.
//
// # Error shape
//
// Every error response is {"error": message}. Validation and ceremony
// failures are 400s carrying the domain error's message, middleware
// rejections are 401s, and anything unexpected is a 500 whose cause is
// logged but never sent to the client.
package api
