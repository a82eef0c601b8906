package auth

import (
	"context"

	"storefront/internal/models"
)

// Provider verifies email/password credentials.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error)
}

// Federator signs a user in through an external identity provider.
type Federator interface {
	SignIn(ctx context.Context) (*models.Identity, error)
}

// PasswordManager is implemented by providers that own the password itself.
type PasswordManager interface {
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, uid, password string) error
}
