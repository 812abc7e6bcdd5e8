package loginattempt

import (
	"context"
	"sync"
	"time"
)

type attempt struct {
	userID string
	at     time.Time
}

// MemoryRepository is an in-memory Repository used in tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	attempts []attempt
	nowF     func() time.Time
}

// NewMemoryRepository returns an empty in-memory failed-login repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nowF: time.Now}
}

func (r *MemoryRepository) Record(ctx context.Context, userID, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt{userID: userID, at: r.nowF().UTC()})
	return nil
}

func (r *MemoryRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.attempts {
		if a.userID == userID && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Clear(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.attempts[:0]
	for _, a := range r.attempts {
		if a.userID != userID {
			kept = append(kept, a)
		}
	}
	r.attempts = kept
	return nil
}
