package repository

import (
	"context"

	"account-security-plane/internal/mfa/domain"
)

// Repository defines persistence for confirmed MFA factors and backup codes.
type Repository interface {
	// RecordConfirmed persists f together with the hashes of its backup codes
	// in one transaction. A factor for the same user and method is replaced.
	RecordConfirmed(ctx context.Context, f *domain.Factor, backupCodeHashes []string) error
	// GetConfirmedByUser returns the user's confirmed factors, or an empty
	// slice if there are none.
	GetConfirmedByUser(ctx context.Context, userID string) ([]*domain.Factor, error)
	// HasConfirmed reports whether the user has at least one confirmed factor.
	HasConfirmed(ctx context.Context, userID string) (bool, error)
	// ConsumeBackupCode marks the backup code with codeHash consumed and
	// reports whether an unconsumed code matched. Each code is single-use.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
}
