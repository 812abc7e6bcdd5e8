// Package revocation provides the revoked-token set consulted during token
// validation. The store is an injected collaborator so the backing can be
// memory, a cache, or a shared database without the callers changing.
package revocation

import (
	"context"
	"sync"
	"time"
)

// Store records revoked IDs (a token jti or a session ID) until the tokens
// carrying them would have expired anyway.
type Store interface {
	// Add marks jti as revoked until expiresAt. After expiresAt the entry may be dropped,
	// since an expired token fails validation regardless.
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	// Contains reports whether jti has been revoked and is still within its lifetime.
	Contains(ctx context.Context, jti string) (bool, error)
}

type entry struct {
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory revocation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the store's clock. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowF = now
}

// Add marks jti as revoked until expiresAt.
func (s *MemoryStore) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[jti] = entry{expiresAt: expiresAt}
	return nil
}

// Contains reports whether jti is revoked. Expired entries are dropped lazily.
func (s *MemoryStore) Contains(ctx context.Context, jti string) (bool, error) {
	s.mu.RLock()
	e, ok := s.m[jti]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, jti)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}
