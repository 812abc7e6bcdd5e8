package mfa

import (
	"context"
	"sync"
	"time"

	"account-security-plane/internal/mfa/domain"
)

// enrollmentTTL bounds how long an abandoned enrollment lingers before it is
// dropped on the next access.
const enrollmentTTL = 30 * time.Minute

// EnrollmentStore holds the single in-progress enrollment per principal.
// Enrollments are transient; only Acknowledge makes anything durable.
type EnrollmentStore interface {
	// Put stores e as the principal's current enrollment, replacing any
	// in-progress one.
	Put(ctx context.Context, e *domain.Enrollment)
	// Get returns the principal's current enrollment, or ok false if there is
	// none or it has expired.
	Get(ctx context.Context, userID string) (e *domain.Enrollment, ok bool)
	// Delete removes the principal's current enrollment.
	Delete(ctx context.Context, userID string)
}

// MemoryEnrollmentStore is an in-memory EnrollmentStore implementation.
type MemoryEnrollmentStore struct {
	mu   sync.RWMutex
	m    map[string]*domain.Enrollment
	nowF func() time.Time
}

// NewMemoryEnrollmentStore returns a new in-memory enrollment store.
func NewMemoryEnrollmentStore() *MemoryEnrollmentStore {
	return &MemoryEnrollmentStore{
		m:    make(map[string]*domain.Enrollment),
		nowF: time.Now,
	}
}

// Put stores e as the principal's current enrollment.
func (s *MemoryEnrollmentStore) Put(ctx context.Context, e *domain.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[e.UserID] = e
}

// Get returns the principal's current enrollment if present and not expired.
func (s *MemoryEnrollmentStore) Get(ctx context.Context, userID string) (*domain.Enrollment, bool) {
	s.mu.RLock()
	e, ok := s.m[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.nowF().Sub(e.CreatedAt) > enrollmentTTL {
		s.mu.Lock()
		delete(s.m, userID)
		s.mu.Unlock()
		return nil, false
	}
	return e, true
}

// Delete removes the principal's current enrollment.
func (s *MemoryEnrollmentStore) Delete(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
