package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"account-security-plane/internal/identity/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an identity repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type identityRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	Provider         string    `db:"provider"`
	ProviderID       string    `db:"provider_id"`
	PasswordHash     string    `db:"password_hash"`
	PasswordStrength string    `db:"password_strength"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r identityRow) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:               r.ID,
		UserID:           r.UserID,
		Provider:         domain.IdentityProvider(r.Provider),
		ProviderID:       r.ProviderID,
		PasswordHash:     r.PasswordHash,
		PasswordStrength: r.PasswordStrength,
		CreatedAt:        r.CreatedAt,
	}
}

// GetLocalByUser returns the user's local identity, or nil if not found.
func (r *PostgresRepository) GetLocalByUser(ctx context.Context, userID string) (*domain.Identity, error) {
	var row identityRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, user_id, provider, provider_id, password_hash, password_strength, created_at
		FROM identities
		WHERE user_id = $1 AND provider = $2`,
		userID, string(domain.IdentityProviderLocal))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// Create persists the identity. The identity must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, i *domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, user_id, provider, provider_id, password_hash, password_strength, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		i.ID, i.UserID, string(i.Provider), i.ProviderID, i.PasswordHash, i.PasswordStrength, i.CreatedAt)
	return err
}

// UpdatePasswordHash replaces the password hash and strength label on the
// user's local identity.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID, passwordHash, passwordStrength string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET password_hash = $2, password_strength = $3
		WHERE user_id = $1 AND provider = $4`,
		userID, passwordHash, passwordStrength, string(domain.IdentityProviderLocal))
	return err
}
