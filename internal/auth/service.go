// Package auth implements password-based register, login with risk-gated MFA,
// refresh token rotation, and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"account-security-plane/internal/audit"
	devicedomain "account-security-plane/internal/device/domain"
	identitydomain "account-security-plane/internal/identity/domain"
	"account-security-plane/internal/mfa"
	mfadomain "account-security-plane/internal/mfa/domain"
	"account-security-plane/internal/password"
	"account-security-plane/internal/revocation"
	"account-security-plane/internal/risk"
	"account-security-plane/internal/security"
	sessiondomain "account-security-plane/internal/session/domain"
	userdomain "account-security-plane/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrWeakPassword           = errors.New("password does not meet the strength policy")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrLoginBlocked           = errors.New("login blocked by risk policy")
	ErrMFARequired            = errors.New("mfa code required")
	ErrMFACodeInvalid         = errors.New("mfa code invalid")
)

// Result holds the outcome of Register (user id only), Login, or Refresh.
type Result struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	SessionID    string
	Risk         *risk.Assessment // set by Login
}

// LoginInput carries the credentials plus the request signals risk scoring needs.
type LoginInput struct {
	Email             string
	Password          string
	MFACode           string // one-time or backup code; empty on first attempt
	DeviceFingerprint string
	DeviceName        string
	Browser           string
	IPAddress         string
	Country           string
	UserAgent         string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetLocalByUser(ctx context.Context, userID string) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash, passwordStrength string) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
}

// DeviceRepo is the minimal device repository needed by the auth service.
type DeviceRepo interface {
	GetByFingerprint(ctx context.Context, userID, fingerprint string) (*devicedomain.Device, error)
	Create(ctx context.Context, d *devicedomain.Device) error
	Touch(ctx context.Context, id string) error
	SetTrusted(ctx context.Context, id string, trusted bool) error
}

// FactorRepo is the minimal MFA factor repository needed by the auth service.
type FactorRepo interface {
	GetConfirmedByUser(ctx context.Context, userID string) ([]*mfadomain.Factor, error)
	HasConfirmed(ctx context.Context, userID string) (bool, error)
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
}

// AttemptRepo is the failed-login repository needed for risk scoring.
type AttemptRepo interface {
	Record(ctx context.Context, userID, ip string) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	Clear(ctx context.Context, userID string) error
}

// Service implements the authentication operations.
type Service struct {
	users      UserRepo
	identities IdentityRepo
	sessions   SessionRepo
	devices    DeviceRepo
	factors    FactorRepo
	attempts   AttemptRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	revoked    revocation.Store
	verifier   mfa.TOTPVerifier
	auditor    audit.AuditLogger

	refreshTTL   time.Duration
	failedWindow time.Duration
	nowF         func() time.Time
}

// NewService returns an auth Service with the given dependencies. auditor may
// be nil to disable audit logging.
func NewService(
	users UserRepo,
	identities IdentityRepo,
	sessions SessionRepo,
	devices DeviceRepo,
	factors FactorRepo,
	attempts AttemptRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	revoked revocation.Store,
	verifier mfa.TOTPVerifier,
	auditor audit.AuditLogger,
	refreshTTL, failedWindow time.Duration,
) *Service {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Service{
		users:        users,
		identities:   identities,
		sessions:     sessions,
		devices:      devices,
		factors:      factors,
		attempts:     attempts,
		hasher:       hasher,
		tokens:       tokens,
		revoked:      revoked,
		verifier:     verifier,
		auditor:      auditor,
		refreshTTL:   refreshTTL,
		failedWindow: failedWindow,
		nowF:         time.Now,
	}
}

// Register creates a user and local identity. The password must pass the
// strength policy; policy feedback is wrapped in ErrWeakPassword.
func (s *Service) Register(ctx context.Context, email, pass, name string) (*Result, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	assessment := password.Evaluate(pass)
	if !assessment.Valid {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(assessment.Feedback, "; "))
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	now := s.nowF().UTC()
	user := &userdomain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(pass))
	if err != nil {
		return nil, err
	}
	identity := &identitydomain.Identity{
		ID:               uuid.NewString(),
		UserID:           user.ID,
		Provider:         identitydomain.IdentityProviderLocal,
		ProviderID:       email,
		PasswordHash:     hashed,
		PasswordStrength: assessment.Strength.String(),
		CreatedAt:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	s.auditor.LogEvent(ctx, user.ID, "register", "user", "")
	return &Result{UserID: user.ID}, nil
}

// Login authenticates with email/password, scores the attempt, and acts on the
// recommendation: block refuses outright, mfa_challenge demands a code when
// the user has a confirmed factor, allow proceeds. On success a session is
// created and tokens are issued.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Result, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.identities.GetLocalByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(in.Password)); err != nil {
		_ = s.attempts.Record(ctx, user.ID, in.IPAddress)
		s.auditor.LogEvent(ctx, user.ID, "login_failure", "session", "")
		return nil, ErrInvalidCredentials
	}

	now := s.nowF().UTC()
	signals, dev, err := s.collectSignals(ctx, user.ID, in, now)
	if err != nil {
		return nil, err
	}
	assessment := risk.Score(signals)

	mfaPassed := false
	switch assessment.Action {
	case risk.ActionBlock:
		s.auditor.LogEvent(ctx, user.ID, "login_blocked", "session",
			fmt.Sprintf(`{"score":%d}`, assessment.Score))
		return nil, ErrLoginBlocked
	case risk.ActionMFAChallenge:
		enrolled, err := s.factors.HasConfirmed(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if enrolled {
			if in.MFACode == "" {
				return &Result{UserID: user.ID, Risk: &assessment}, ErrMFARequired
			}
			ok, err := s.verifyChallengeCode(ctx, user.ID, in.MFACode)
			if err != nil {
				return nil, err
			}
			if !ok {
				_ = s.attempts.Record(ctx, user.ID, in.IPAddress)
				s.auditor.LogEvent(ctx, user.ID, "mfa_failure", "session", "")
				return nil, ErrMFACodeInvalid
			}
			mfaPassed = true
		}
	}

	if dev == nil {
		dev = &devicedomain.Device{
			ID:          uuid.NewString(),
			UserID:      user.ID,
			Fingerprint: deviceFingerprint(in),
			Name:        in.DeviceName,
			Trusted:     false,
			CreatedAt:   now,
		}
		if err := s.devices.Create(ctx, dev); err != nil {
			return nil, err
		}
	} else {
		_ = s.devices.Touch(ctx, dev.ID)
	}
	// passing an MFA challenge vouches for the device
	if mfaPassed && !dev.Trusted {
		_ = s.devices.SetTrusted(ctx, dev.ID, true)
	}

	sessionID := uuid.NewString()
	refreshToken, jti, _, err := s.tokens.IssueRefresh(sessionID, user.ID)
	if err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, user.ID)
	if err != nil {
		return nil, err
	}
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		DeviceID:         dev.ID,
		DeviceName:       in.DeviceName,
		Browser:          in.Browser,
		IPAddress:        in.IPAddress,
		Country:          in.Country,
		ExpiresAt:        now.Add(s.refreshTTL),
		RefreshJti:       jti,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	_ = s.attempts.Clear(ctx, user.ID)
	s.auditor.LogEvent(ctx, user.ID, "login_success", "session",
		fmt.Sprintf(`{"score":%d,"level":"%s"}`, assessment.Score, assessment.Level))
	return &Result{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		UserID:       user.ID,
		SessionID:    sessionID,
		Risk:         &assessment,
	}, nil
}

// collectSignals derives the risk inputs for the attempt: device familiarity,
// location and IP novelty against the user's active sessions, login hour,
// user-agent reputation, and the recent failed-attempt count.
func (s *Service) collectSignals(ctx context.Context, userID string, in LoginInput, now time.Time) (risk.Signals, *devicedomain.Device, error) {
	dev, err := s.devices.GetByFingerprint(ctx, userID, deviceFingerprint(in))
	if err != nil {
		return risk.Signals{}, nil, err
	}
	active, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return risk.Signals{}, nil, err
	}
	newIP := in.IPAddress != ""
	anomalousLocation := false
	for _, sess := range active {
		if sess.IPAddress == in.IPAddress {
			newIP = false
		}
	}
	if len(active) > 0 && in.Country != "" && active[0].Country != "" && active[0].Country != in.Country {
		anomalousLocation = true
	}
	failed, err := s.attempts.CountSince(ctx, userID, now.Add(-s.failedWindow))
	if err != nil {
		return risk.Signals{}, nil, err
	}
	return risk.Signals{
		UnknownDevice:       dev == nil,
		AnomalousLocation:   anomalousLocation,
		UnusualTime:         risk.UnusualHour(now.Hour()),
		NewIPAddress:        newIP,
		SuspiciousUserAgent: risk.SuspiciousUserAgent(in.UserAgent),
		FailedAttempts:      failed,
	}, dev, nil
}

// verifyChallengeCode accepts either a TOTP code against the user's confirmed
// totp factor or a single-use backup code.
func (s *Service) verifyChallengeCode(ctx context.Context, userID, code string) (bool, error) {
	factors, err := s.factors.GetConfirmedByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, f := range factors {
		if f.Method == mfadomain.MethodTOTP && f.Secret != "" && s.verifier.VerifyTOTP(code, f.Secret) {
			return true, nil
		}
	}
	return s.factors.ConsumeBackupCode(ctx, userID, mfa.HashCode(code))
}

// ChangePassword verifies the current password and replaces it with one that
// passes the strength policy.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	ident, err := s.identities.GetLocalByUser(ctx, userID)
	if err != nil {
		return err
	}
	if ident == nil || ident.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	assessment := password.Evaluate(next)
	if !assessment.Valid {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(assessment.Feedback, "; "))
	}
	hashed, err := s.hasher.Hash([]byte(next))
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePasswordHash(ctx, userID, hashed, assessment.Strength.String()); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, userID, "password_change", "identity", "")
	return nil
}

// Refresh validates the refresh token, rotates it, and returns new tokens.
// Presenting a stale jti for a live session is treated as token theft: every
// session for the user is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.Active(s.nowF().UTC()) {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		_ = s.sessions.RevokeAllByUser(ctx, userID)
		s.auditor.LogEvent(ctx, userID, "refresh_reuse_detected", "session", "")
		return nil, ErrRefreshTokenReuse
	}
	if sess.RefreshTokenHash != "" && !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	now := s.nowF().UTC()
	_ = s.sessions.UpdateLastSeen(ctx, sessionID, now)
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateRefreshToken(ctx, sessionID, newJti, security.HashRefreshToken(newRefresh)); err != nil {
		return nil, err
	}
	accessToken, _, accessExp, err := s.tokens.IssueAccess(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &Result{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		UserID:       userID,
		SessionID:    sessionID,
	}, nil
}

// Logout revokes the session and records it in the revocation set so access
// tokens minted for it stop validating immediately.
func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	if err := s.revoked.Add(ctx, sessionID, sess.ExpiresAt); err != nil {
		return err
	}
	s.auditor.LogEvent(ctx, userID, "logout", "session", "")
	return nil
}

// LogoutByRefresh revokes the session carried by the refresh token. Invalid
// tokens are a no-op so logout never fails for an already-signed-out client.
func (s *Service) LogoutByRefresh(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	sessionID, _, userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil
	}
	return s.Logout(ctx, userID, sessionID)
}

func deviceFingerprint(in LoginInput) string {
	fp := strings.TrimSpace(in.DeviceFingerprint)
	if fp == "" {
		fp = "password-login"
	}
	return fp
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEmail)
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}
