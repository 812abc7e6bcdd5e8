package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"account-security-plane/internal/session/domain"
)

type sessionRow struct {
	ID               string         `db:"id"`
	UserID           string         `db:"user_id"`
	DeviceID         string         `db:"device_id"`
	DeviceName       string         `db:"device_name"`
	Browser          string         `db:"browser"`
	IPAddress        sql.NullString `db:"ip_address"`
	Country          string         `db:"country"`
	ExpiresAt        time.Time      `db:"expires_at"`
	RevokedAt        sql.NullTime   `db:"revoked_at"`
	LastSeenAt       sql.NullTime   `db:"last_seen_at"`
	RefreshJti       sql.NullString `db:"refresh_jti"`
	RefreshTokenHash sql.NullString `db:"refresh_token_hash"`
	CreatedAt        time.Time      `db:"created_at"`
}

// PostgresRepository persists sessions in Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, device_id, device_name, browser, ip_address, country,
	expires_at, revoked_at, last_seen_at, refresh_jti, refresh_token_hash, created_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// ListActiveByUser returns all non-revoked, non-expired sessions for the user,
// most recent activity first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY COALESCE(last_seen_at, created_at) DESC`, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, len(rows))
	for i := range rows {
		out[i] = rowToDomain(&rows[i])
	}
	return out, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_id, device_name, browser, ip_address, country,
			expires_at, revoked_at, last_seen_at, refresh_jti, refresh_token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.DeviceID, s.DeviceName, s.Browser,
		nullString(s.IPAddress), s.Country, s.ExpiresAt,
		nullTime(s.RevokedAt), nullTime(s.LastSeenAt),
		nullString(s.RefreshJti), nullString(s.RefreshTokenHash), s.CreatedAt)
	return err
}

// Revoke marks the session with the given id as revoked. Returns an error if the update fails.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, time.Now().UTC())
	return err
}

// RevokeAllByUser revokes all sessions for the given user. Returns an error if the update fails.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, time.Now().UTC())
	return err
}

// UpdateLastSeen sets the session's last-seen timestamp for the given id.
func (r *PostgresRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateRefreshToken sets the session's current refresh token jti and hash for rotation.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_jti = $2, refresh_token_hash = $3 WHERE id = $1`,
		sessionID, nullString(jti), nullString(refreshTokenHash))
	return err
}

// CountActiveByUser returns the number of non-revoked, non-expired sessions for the user.
func (r *PostgresRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()`,
		userID)
	return n, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func rowToDomain(row *sessionRow) *domain.Session {
	s := &domain.Session{
		ID:         row.ID,
		UserID:     row.UserID,
		DeviceID:   row.DeviceID,
		DeviceName: row.DeviceName,
		Browser:    row.Browser,
		Country:    row.Country,
		ExpiresAt:  row.ExpiresAt,
		CreatedAt:  row.CreatedAt,
	}
	if row.IPAddress.Valid {
		s.IPAddress = row.IPAddress.String
	}
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time
		s.RevokedAt = &t
	}
	if row.LastSeenAt.Valid {
		t := row.LastSeenAt.Time
		s.LastSeenAt = &t
	}
	if row.RefreshJti.Valid {
		s.RefreshJti = row.RefreshJti.String
	}
	if row.RefreshTokenHash.Valid {
		s.RefreshTokenHash = row.RefreshTokenHash.String
	}
	return s
}
