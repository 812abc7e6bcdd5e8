package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"account-security-plane/internal/user/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a user repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, phone, phone_verified, status, created_at, updated_at`

type userRow struct {
	ID            string       `db:"id"`
	Email         string       `db:"email"`
	Name          string       `db:"name"`
	Phone         string       `db:"phone"`
	PhoneVerified bool         `db:"phone_verified"`
	Status        string       `db:"status"`
	CreatedAt     sql.NullTime `db:"created_at"`
	UpdatedAt     sql.NullTime `db:"updated_at"`
}

func (r userRow) toDomain() *domain.User {
	u := &domain.User{
		ID:            r.ID,
		Email:         r.Email,
		Name:          r.Name,
		Phone:         r.Phone,
		PhoneVerified: r.PhoneVerified,
		Status:        domain.UserStatus(r.Status),
	}
	if r.CreatedAt.Valid {
		u.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		u.UpdatedAt = r.UpdatedAt.Time
	}
	return u
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByEmail returns the user for email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// Create persists the user. The user must have ID set and pass Validate.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, phone, phone_verified, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.Phone, u.PhoneVerified, string(u.Status), u.CreatedAt, u.UpdatedAt)
	return err
}

// Update persists mutable user fields.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, phone = $4, phone_verified = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		u.ID, u.Email, u.Name, u.Phone, u.PhoneVerified, string(u.Status), u.UpdatedAt)
	return err
}

// SetPhoneVerified sets phone and phone_verified only when the user has no
// phone on file and is not yet verified.
func (r *PostgresRepository) SetPhoneVerified(ctx context.Context, userID, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET phone = $2, phone_verified = TRUE, updated_at = NOW()
		WHERE id = $1 AND phone = '' AND phone_verified = FALSE`,
		userID, phone)
	return err
}
