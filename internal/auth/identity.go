package auth

import (
	"context"

	"github.com/safar/go-storefront/internal/models"
)

// Identity is the authenticated principal behind a request.
type Identity struct {
	UserID int64
	Role   models.Role
}

// HasRole reports whether the identity holds any of the given roles.
func (i *Identity) HasRole(roles ...models.Role) bool {
	if i == nil {
		return false
	}
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/safar/go-storefront/internal/auth/identity"

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
