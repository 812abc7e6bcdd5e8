package domain

import "time"

// Identity represents a user's linked identity (local credentials or OAuth).
type Identity struct {
	ID           string
	UserID       string
	Provider     IdentityProvider
	ProviderID   string
	PasswordHash string // empty if not local
	// PasswordStrength is the strength label assessed when the password was
	// set. Kept so posture reporting never needs the plaintext.
	PasswordStrength string
	CreatedAt        time.Time
}

type IdentityProvider string

const (
	IdentityProviderLocal IdentityProvider = "local"
	IdentityProviderOAuth IdentityProvider = "oauth"
)
