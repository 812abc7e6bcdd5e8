package loginattempt

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type PostgresRepository struct {
	db   *sqlx.DB
	nowF func() time.Time
}

// NewPostgresRepository returns a failed-login repository that uses the given db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db, nowF: time.Now}
}

// Record stores one failed attempt for the user.
func (r *PostgresRepository) Record(ctx context.Context, userID, ip string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failed_logins (user_id, ip_address, created_at)
		VALUES ($1, $2, $3)`,
		userID, ip, r.nowF().UTC())
	return err
}

// CountSince returns the number of failed attempts at or after since.
func (r *PostgresRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM failed_logins
		WHERE user_id = $1 AND created_at >= $2`, userID, since)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Clear removes the user's recorded attempts.
func (r *PostgresRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM failed_logins WHERE user_id = $1`, userID)
	return err
}
