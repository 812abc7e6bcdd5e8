// Package posture assembles the account security overview shown on the
// security settings page.
package posture

import (
	"context"
	"errors"
	"time"

	identitydomain "account-security-plane/internal/identity/domain"
	userdomain "account-security-plane/internal/user/domain"
)

// ErrUserNotFound is returned when the principal no longer exists.
var ErrUserNotFound = errors.New("posture: user not found")

// Report is the per-account security summary.
type Report struct {
	PasswordStrength string `json:"passwordStrength"`
	MFAEnabled       bool   `json:"mfaEnabled"`
	ActiveSessions   int    `json:"activeSessions"`
	AccountAgeDays   int    `json:"accountAgeDays"`
}

// UserRepo is the minimal user repository needed for the report.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// IdentityRepo is the minimal identity repository needed for the report.
type IdentityRepo interface {
	GetLocalByUser(ctx context.Context, userID string) (*identitydomain.Identity, error)
}

// FactorRepo reports whether the user has a confirmed MFA factor.
type FactorRepo interface {
	HasConfirmed(ctx context.Context, userID string) (bool, error)
}

// SessionRepo counts the user's active sessions.
type SessionRepo interface {
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}

// Service builds posture reports.
type Service struct {
	users      UserRepo
	identities IdentityRepo
	factors    FactorRepo
	sessions   SessionRepo
	nowF       func() time.Time
}

// NewService returns a posture Service with the given dependencies.
func NewService(users UserRepo, identities IdentityRepo, factors FactorRepo, sessions SessionRepo) *Service {
	return &Service{
		users:      users,
		identities: identities,
		factors:    factors,
		sessions:   sessions,
		nowF:       time.Now,
	}
}

// Report assembles the security summary for the user. The password strength
// is the label assessed when the password was last set; the plaintext is
// never needed.
func (s *Service) Report(ctx context.Context, userID string) (*Report, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	ident, err := s.identities.GetLocalByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	strength := ""
	if ident != nil {
		strength = ident.PasswordStrength
	}
	enabled, err := s.factors.HasConfirmed(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.sessions.CountActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	age := int(s.nowF().UTC().Sub(user.CreatedAt).Hours() / 24)
	if age < 0 {
		age = 0
	}
	return &Report{
		PasswordStrength: strength,
		MFAEnabled:       enabled,
		ActiveSessions:   active,
		AccountAgeDays:   age,
	}, nil
}
