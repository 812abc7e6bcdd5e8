// Package loginattempt records failed login attempts and counts them over a
// sliding window for risk scoring.
package loginattempt

import (
	"context"
	"time"
)

// Repository defines persistence for failed login attempts.
type Repository interface {
	// Record stores one failed attempt for the user at the current time.
	Record(ctx context.Context, userID, ip string) error
	// CountSince returns the number of failed attempts for the user at or
	// after since.
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	// Clear removes the user's recorded attempts, called after a successful
	// login so stale failures stop inflating risk.
	Clear(ctx context.Context, userID string) error
}
