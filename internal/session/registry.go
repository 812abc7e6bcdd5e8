// Package session exposes a principal's active sessions for device management:
// listing with a "current" marker, revoking one, and revoking all others.
package session

import (
	"context"
	"errors"
	"time"

	"account-security-plane/internal/revocation"
	"account-security-plane/internal/session/domain"
	"account-security-plane/internal/session/repository"
)

// Sentinel errors for the registry; handlers map them to HTTP statuses.
var (
	// ErrNotFound is returned when the session does not exist or is already
	// revoked, so callers can treat revocation idempotently.
	ErrNotFound = errors.New("session not found")
	// ErrCannotRevokeCurrent is returned when a revoke targets the caller's own
	// session. Ending the current session goes through logout instead.
	ErrCannotRevokeCurrent = errors.New("cannot revoke the current session")
)

// View is one session as presented to the principal, with the current-session
// marker resolved for this call.
type View struct {
	ID           string    `json:"id"`
	Device       string    `json:"device"`
	Browser      string    `json:"browser"`
	IP           string    `json:"ip"`
	Country      string    `json:"country"`
	LastActivity time.Time `json:"lastActivity"`
	IsCurrent    bool      `json:"isCurrent"`
}

// Registry lists and revokes a principal's sessions. All operations are scoped
// to the principal: sessions of other users are invisible, reported as not found.
type Registry struct {
	repo    repository.Repository
	revoked revocation.Store
}

// NewRegistry returns a Registry backed by the given session repository.
// revoked may be nil; when set, revoked session IDs are added to it so access
// tokens minted for them stop validating immediately.
func NewRegistry(repo repository.Repository, revoked revocation.Store) *Registry {
	return &Registry{repo: repo, revoked: revoked}
}

// List returns the principal's active sessions, most recent activity first,
// with exactly the session matching currentSessionID marked current.
func (g *Registry) List(ctx context.Context, userID, currentSessionID string) ([]View, error) {
	sessions, err := g.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(sessions))
	for i, s := range sessions {
		views[i] = toView(s, currentSessionID)
	}
	return views, nil
}

// Revoke revokes a single non-current session owned by the principal.
// Returns ErrNotFound for unknown, foreign, or already-revoked sessions and
// ErrCannotRevokeCurrent when id is the caller's own session.
func (g *Registry) Revoke(ctx context.Context, userID, currentSessionID, id string) error {
	if id == currentSessionID {
		return ErrCannotRevokeCurrent
	}
	s, err := g.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s == nil || s.UserID != userID || s.RevokedAt != nil {
		return ErrNotFound
	}
	if err := g.repo.Revoke(ctx, id); err != nil {
		return err
	}
	if g.revoked != nil {
		_ = g.revoked.Add(ctx, id, s.ExpiresAt)
	}
	return nil
}

// RevokeAllOthers revokes every active session except the current one and
// returns the number revoked. Each revoke is independent: a failure on one
// session does not abort the rest, and only successes are counted.
func (g *Registry) RevokeAllOthers(ctx context.Context, userID, currentSessionID string) (int, error) {
	sessions, err := g.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	revoked := 0
	var lastErr error
	for _, s := range sessions {
		if s.ID == currentSessionID {
			continue
		}
		if err := g.repo.Revoke(ctx, s.ID); err != nil {
			lastErr = err
			continue
		}
		if g.revoked != nil {
			_ = g.revoked.Add(ctx, s.ID, s.ExpiresAt)
		}
		revoked++
	}
	if revoked == 0 && lastErr != nil {
		return 0, lastErr
	}
	return revoked, nil
}

func toView(s *domain.Session, currentSessionID string) View {
	return View{
		ID:           s.ID,
		Device:       s.DeviceName,
		Browser:      s.Browser,
		IP:           s.IPAddress,
		Country:      s.Country,
		LastActivity: s.LastActivity(),
		IsCurrent:    s.ID == currentSessionID,
	}
}
