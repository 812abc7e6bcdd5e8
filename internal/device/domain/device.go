package domain

import "time"

// Device represents a registered device for a user.
type Device struct {
	ID          string
	UserID      string
	Fingerprint string
	Name        string // human label, e.g. "MacBook Pro"
	Trusted     bool
	LastSeenAt  *time.Time
	CreatedAt   time.Time
}
