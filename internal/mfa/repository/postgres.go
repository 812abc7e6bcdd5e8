package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"account-security-plane/internal/mfa/domain"
)

type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns an MFA factor repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type factorRow struct {
	ID          string       `db:"id"`
	UserID      string       `db:"user_id"`
	Method      string       `db:"method"`
	Secret      string       `db:"secret"`
	Destination string       `db:"destination"`
	ConfirmedAt sql.NullTime `db:"confirmed_at"`
	CreatedAt   time.Time    `db:"created_at"`
}

func (r factorRow) toDomain() *domain.Factor {
	f := &domain.Factor{
		ID:          r.ID,
		UserID:      r.UserID,
		Method:      domain.Method(r.Method),
		Secret:      r.Secret,
		Destination: r.Destination,
		CreatedAt:   r.CreatedAt,
	}
	if r.ConfirmedAt.Valid {
		f.ConfirmedAt = r.ConfirmedAt.Time
	}
	return f
}

// RecordConfirmed persists the factor and its backup code hashes in one
// transaction. Re-confirming the same user/method replaces the secret and the
// outstanding backup codes.
func (r *PostgresRepository) RecordConfirmed(ctx context.Context, f *domain.Factor, backupCodeHashes []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mfa_factors (id, user_id, method, secret, destination, confirmed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, method) DO UPDATE
		SET secret = EXCLUDED.secret,
		    destination = EXCLUDED.destination,
		    confirmed_at = EXCLUDED.confirmed_at`,
		f.ID, f.UserID, string(f.Method), f.Secret, f.Destination, f.ConfirmedAt, f.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM mfa_backup_codes WHERE user_id = $1 AND consumed_at IS NULL`, f.UserID)
	if err != nil {
		return err
	}
	for _, h := range backupCodeHashes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mfa_backup_codes (id, user_id, code_hash, created_at)
			VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), f.UserID, h, f.ConfirmedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetConfirmedByUser returns the user's confirmed factors, newest first.
func (r *PostgresRepository) GetConfirmedByUser(ctx context.Context, userID string) ([]*domain.Factor, error) {
	var rows []factorRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, method, secret, destination, confirmed_at, created_at
		FROM mfa_factors
		WHERE user_id = $1 AND confirmed_at IS NOT NULL
		ORDER BY confirmed_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	factors := make([]*domain.Factor, len(rows))
	for i, row := range rows {
		factors[i] = row.toDomain()
	}
	return factors, nil
}

// HasConfirmed reports whether the user has at least one confirmed factor.
func (r *PostgresRepository) HasConfirmed(ctx context.Context, userID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM mfa_factors
		WHERE user_id = $1 AND confirmed_at IS NOT NULL`, userID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConsumeBackupCode marks the matching unconsumed backup code consumed and
// reports whether one matched.
func (r *PostgresRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mfa_backup_codes
		SET consumed_at = NOW()
		WHERE id = (
			SELECT id FROM mfa_backup_codes
			WHERE user_id = $1 AND code_hash = $2 AND consumed_at IS NULL
			LIMIT 1
		)`, userID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
