package repository

import (
	"context"
	"testing"
	"time"

	"account-security-plane/internal/session/domain"
)

func TestMemoryRepository_ClockAdvancesPastConstruction(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	now := time.Now().UTC()
	repo.SetClock(func() time.Time { return now })

	if err := repo.Create(ctx, &domain.Session{
		ID: "s1", UserID: "u1",
		ExpiresAt: now.Add(time.Minute),
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := repo.ListActiveByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActiveByUser: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active sessions = %d, want 1", len(active))
	}

	now = now.Add(2 * time.Minute)
	active, err = repo.ListActiveByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListActiveByUser: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active sessions after expiry = %d, want 0", len(active))
	}
}

func TestMemoryRepository_RevokeStampsInjectedClock(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return now })

	_ = repo.Create(ctx, &domain.Session{
		ID: "s1", UserID: "u1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	})
	if err := repo.Revoke(ctx, "s1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	s, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if s.RevokedAt == nil || !s.RevokedAt.Equal(now) {
		t.Fatalf("RevokedAt = %v, want %v", s.RevokedAt, now)
	}
}
