package auth

import (
	"context"
	"strings"
)

// Identity captures the authenticated principal forwarded by the API gateway.
// The gateway terminates authentication and passes the verified subject on
// trusted headers; this service only consumes them.
type Identity struct {
	ActorID string
}

// Valid reports whether the identity carries a usable actor identifier.
func (i *Identity) Valid() bool {
	return i != nil && strings.TrimSpace(i.ActorID) != ""
}

type contextKey string

const identityContextKey contextKey = "github.com/craftmarket/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
