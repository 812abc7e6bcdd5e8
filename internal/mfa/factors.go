package mfa

import (
	"context"
	"time"

	"github.com/google/uuid"

	"account-security-plane/internal/mfa/domain"
	"account-security-plane/internal/mfa/repository"
)

// RepositoryFactorStore adapts the factor repository to the machine's
// FactorStore. Backup codes are hashed here; plaintext never reaches storage.
type RepositoryFactorStore struct {
	repo repository.Repository
	nowF func() time.Time
}

// NewRepositoryFactorStore returns a FactorStore backed by repo.
func NewRepositoryFactorStore(repo repository.Repository) *RepositoryFactorStore {
	return &RepositoryFactorStore{repo: repo, nowF: time.Now}
}

// RecordFactor persists the enrollment's factor and hashed backup codes.
func (s *RepositoryFactorStore) RecordFactor(ctx context.Context, e *domain.Enrollment) error {
	now := s.nowF().UTC()
	hashes := make([]string, len(e.BackupCodes))
	for i, code := range e.BackupCodes {
		hashes[i] = HashCode(code)
	}
	f := &domain.Factor{
		ID:          uuid.NewString(),
		UserID:      e.UserID,
		Method:      e.Method,
		Secret:      e.Secret,
		Destination: e.Destination,
		CreatedAt:   now,
		ConfirmedAt: now,
	}
	return s.repo.RecordConfirmed(ctx, f, hashes)
}
