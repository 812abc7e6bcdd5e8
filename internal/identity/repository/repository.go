package repository

import (
	"context"

	"account-security-plane/internal/identity/domain"
)

// Repository defines persistence for linked identities.
type Repository interface {
	// GetLocalByUser returns the user's local-credentials identity, or nil if
	// the user has none.
	GetLocalByUser(ctx context.Context, userID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
	// UpdatePasswordHash replaces the password hash and assessed strength label
	// on the user's local identity.
	UpdatePasswordHash(ctx context.Context, userID, passwordHash, passwordStrength string) error
}
