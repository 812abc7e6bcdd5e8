package repository

import (
	"context"

	"account-security-plane/internal/device/domain"
)

// Repository defines persistence for known devices.
type Repository interface {
	// GetByFingerprint returns the user's device with the given fingerprint,
	// or nil if the device has not been seen before.
	GetByFingerprint(ctx context.Context, userID, fingerprint string) (*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	// Touch updates last_seen_at for the device.
	Touch(ctx context.Context, id string) error
	// SetTrusted marks the device trusted or untrusted.
	SetTrusted(ctx context.Context, id string, trusted bool) error
}
