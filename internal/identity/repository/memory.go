package repository

import (
	"context"
	"sync"

	"account-security-plane/internal/identity/domain"
)

// MemoryRepository is an in-memory Repository used in tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	identities map[string]*domain.Identity
}

// NewMemoryRepository returns an empty in-memory identity repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{identities: make(map[string]*domain.Identity)}
}

func (r *MemoryRepository) GetLocalByUser(ctx context.Context, userID string) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, i := range r.identities {
		if i.UserID == userID && i.Provider == domain.IdentityProviderLocal {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Create(ctx context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *i
	r.identities[i.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash, passwordStrength string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.identities {
		if i.UserID == userID && i.Provider == domain.IdentityProviderLocal {
			i.PasswordHash = passwordHash
			i.PasswordStrength = passwordStrength
		}
	}
	return nil
}
