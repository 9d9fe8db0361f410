// ABOUTME: Identity context for tracking the authenticated user through request handlers
// ABOUTME: Provides WithIdentity/FromContext for propagating identity via context

package auth

import (
	"context"

	"github.com/2389/attache/internal/store"
)

// Identity holds the authenticated user resolved from a bearer token.
// This is populated by the auth middleware and can be retrieved from context
// in handlers. A nil Identity means the request is anonymous.
type Identity struct {
	User   *store.User
	Claims *Claims
}

// identityContextKey is the key type for storing Identity in context.Context.
type identityContextKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityContextKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}
