package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"account-security-plane/internal/device/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a device repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type deviceRow struct {
	ID          string       `db:"id"`
	UserID      string       `db:"user_id"`
	Fingerprint string       `db:"fingerprint"`
	Name        string       `db:"name"`
	Trusted     bool         `db:"trusted"`
	LastSeenAt  sql.NullTime `db:"last_seen_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r deviceRow) toDomain() *domain.Device {
	d := &domain.Device{
		ID:          r.ID,
		UserID:      r.UserID,
		Fingerprint: r.Fingerprint,
		Name:        r.Name,
		Trusted:     r.Trusted,
		CreatedAt:   r.CreatedAt,
	}
	if r.LastSeenAt.Valid {
		t := r.LastSeenAt.Time
		d.LastSeenAt = &t
	}
	return d
}

// GetByFingerprint returns the user's device with the fingerprint, or nil if
// not found.
func (r *PostgresRepository) GetByFingerprint(ctx context.Context, userID, fingerprint string) (*domain.Device, error) {
	var row deviceRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, user_id, fingerprint, name, trusted, last_seen_at, created_at
		FROM devices
		WHERE user_id = $1 AND fingerprint = $2`, userID, fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// Create persists the device. The device must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, d *domain.Device) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, user_id, fingerprint, name, trusted, last_seen_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.UserID, d.Fingerprint, d.Name, d.Trusted, d.LastSeenAt, d.CreatedAt)
	return err
}

// Touch updates last_seen_at for the device.
func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = NOW() WHERE id = $1`, id)
	return err
}

// SetTrusted marks the device trusted or untrusted.
func (r *PostgresRepository) SetTrusted(ctx context.Context, id string, trusted bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE devices SET trusted = $2 WHERE id = $1`, id, trusted)
	return err
}
