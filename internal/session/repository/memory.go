package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"account-security-plane/internal/session/domain"
)

// MemoryRepository is an in-memory Repository for tests and local development.
// Safe for concurrent use.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	nowF     func() time.Time

	// FailRevoke lists session IDs whose Revoke call returns an error,
	// for exercising partial-failure paths in tests.
	FailRevoke map[string]error
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*domain.Session),
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the repository's clock. Intended for tests.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nowF = now
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.nowF()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity().After(out[j].LastActivity())
	})
	return out, nil
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailRevoke[id]; ok {
		return err
	}
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	now := r.nowF()
	s.RevokedAt = &now
	return nil
}

func (r *MemoryRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowF()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			at := now
			s.RevokedAt = &at
		}
	}
	return nil
}

func (r *MemoryRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastSeenAt = &at
	}
	return nil
}

func (r *MemoryRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.RefreshJti = jti
		s.RefreshTokenHash = refreshTokenHash
	}
	return nil
}

func (r *MemoryRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	list, err := r.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
