package domain

import "time"

// AuditLog represents one security-relevant event tied to a principal.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
