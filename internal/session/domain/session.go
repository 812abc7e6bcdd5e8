package domain

import "time"

// Session represents an authenticated session tied to a device.
type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string // human label shown in device management
	Browser          string
	IPAddress        string
	Country          string
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked
	LastSeenAt       *time.Time
	RefreshJti       string // current refresh token jti for rotation; empty if not set
	RefreshTokenHash string // SHA-256 hash of current refresh token
	CreatedAt        time.Time
}

// Active reports whether the session is usable at the given instant:
// not revoked and not expired.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// LastActivity returns the most recent activity timestamp: LastSeenAt when
// set, otherwise CreatedAt.
func (s *Session) LastActivity() time.Time {
	if s.LastSeenAt != nil {
		return *s.LastSeenAt
	}
	return s.CreatedAt
}
