package auth

import (
	"context"

	"github.com/shelfkeep/shelfkeep/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// identityContextKey is the context key for the verified identity.
	identityContextKey contextKey = "identity"
)

// ContextWithIdentity adds a verified identity to the context.
func ContextWithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the verified identity from the context.
// Returns nil if the request carried no valid identity.
func IdentityFromContext(ctx context.Context) *model.Identity {
	identity, ok := ctx.Value(identityContextKey).(*model.Identity)
	if !ok {
		return nil
	}
	return identity
}
