package core

import (
	"context"
)

// IdentityProvider lists the host platform's users.
type IdentityProvider interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// IdentityProviderFunc adapts a function to IdentityProvider.
type IdentityProviderFunc func(ctx context.Context) ([]User, error)

// ListUsers calls f.
func (f IdentityProviderFunc) ListUsers(ctx context.Context) ([]User, error) {
	return f(ctx)
}
