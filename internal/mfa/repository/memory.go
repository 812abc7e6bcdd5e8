package repository

import (
	"context"
	"sync"

	"account-security-plane/internal/mfa/domain"
)

// MemoryRepository is an in-memory Repository used in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	factors map[string]*domain.Factor // keyed by userID+"/"+method
	codes   map[string][]string       // unconsumed code hashes by userID

	// RecordErr, when set, is returned by RecordConfirmed to simulate a
	// persistence failure.
	RecordErr error
}

// NewMemoryRepository returns an empty in-memory factor repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		factors: make(map[string]*domain.Factor),
		codes:   make(map[string][]string),
	}
}

func (r *MemoryRepository) RecordConfirmed(ctx context.Context, f *domain.Factor, backupCodeHashes []string) error {
	if r.RecordErr != nil {
		return r.RecordErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.factors[f.UserID+"/"+string(f.Method)] = &cp
	r.codes[f.UserID] = append([]string(nil), backupCodeHashes...)
	return nil
}

func (r *MemoryRepository) GetConfirmedByUser(ctx context.Context, userID string) ([]*domain.Factor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Factor
	for _, f := range r.factors {
		if f.UserID == userID && !f.ConfirmedAt.IsZero() {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) HasConfirmed(ctx context.Context, userID string) (bool, error) {
	factors, _ := r.GetConfirmedByUser(ctx, userID)
	return len(factors) > 0, nil
}

func (r *MemoryRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hashes := r.codes[userID]
	for i, h := range hashes {
		if h == codeHash {
			r.codes[userID] = append(hashes[:i], hashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
