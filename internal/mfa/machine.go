// Package mfa implements multi-factor enrollment as an explicit state
// machine driven by discrete transitions, plus the collaborators that issue
// secrets, dispatch challenge codes, and persist confirmed factors.
package mfa

import (
	"context"
	"errors"
	"time"

	"account-security-plane/internal/mfa/domain"
)

var (
	// ErrInvalidTransition is returned when a transition is requested from a
	// state that does not permit it.
	ErrInvalidTransition = errors.New("mfa: transition not allowed from current state")

	// ErrUnsupportedMethod is returned when the selected method is not one of
	// totp, sms, or email.
	ErrUnsupportedMethod = errors.New("mfa: unsupported method")

	// ErrMalformedCode is returned when the submitted code is not exactly six
	// digits. It is distinct from ErrCodeMismatch so clients can render a
	// format hint instead of a failure counter.
	ErrMalformedCode = errors.New("mfa: code must be six digits")

	// ErrCodeMismatch is returned when a well-formed code does not verify
	// against the issued secret or dispatched challenge.
	ErrCodeMismatch = errors.New("mfa: code verification failed")

	// ErrNoDestination is returned when sms or email enrollment is started for
	// a principal with no verified destination on file.
	ErrNoDestination = errors.New("mfa: no destination for challenge delivery")
)

// SecretIssuer provisions a TOTP shared secret for an account.
type SecretIssuer interface {
	IssueTOTP(ctx context.Context, account string) (secret, qrRef string, err error)
}

// TOTPVerifier checks a six-digit code against a shared secret.
type TOTPVerifier interface {
	VerifyTOTP(code, secret string) bool
}

// ChallengeSender dispatches a one-time code over an out-of-band channel.
type ChallengeSender interface {
	SendCode(ctx context.Context, method domain.Method, destination, code string) error
}

// FactorStore persists a confirmed factor from a finished enrollment. The
// machine calls it exactly once, at the acknowledgement transition; nothing is
// durable before that.
type FactorStore interface {
	RecordFactor(ctx context.Context, e *domain.Enrollment) error
}

// Machine drives enrollments through their transitions. It holds no
// per-enrollment state itself; callers pass the enrollment value they own.
type Machine struct {
	issuer   SecretIssuer
	verifier TOTPVerifier
	sender   ChallengeSender
	factors  FactorStore
	backups  int
	nowF     func() time.Time
}

// NewMachine builds a Machine with the given collaborators. backupCount is the
// number of backup codes issued at verification; values below 1 fall back to 10.
func NewMachine(issuer SecretIssuer, verifier TOTPVerifier, sender ChallengeSender, factors FactorStore, backupCount int) *Machine {
	if backupCount < 1 {
		backupCount = 10
	}
	return &Machine{
		issuer:   issuer,
		verifier: verifier,
		sender:   sender,
		factors:  factors,
		backups:  backupCount,
		nowF:     time.Now,
	}
}

// Start opens a new enrollment for the principal in the method selection step.
func (m *Machine) Start(userID string) *domain.Enrollment {
	return &domain.Enrollment{
		UserID:    userID,
		State:     domain.StateMethodSelection,
		CreatedAt: m.nowF().UTC(),
	}
}

// SelectMethod moves method_selection → setup. destination is the phone number
// or email address challenges are dispatched to; it is ignored for totp.
func (m *Machine) SelectMethod(e *domain.Enrollment, method domain.Method, destination string) error {
	if e.State != domain.StateMethodSelection {
		return ErrInvalidTransition
	}
	if !method.Valid() {
		return ErrUnsupportedMethod
	}
	if method != domain.MethodTOTP && destination == "" {
		return ErrNoDestination
	}
	e.Method = method
	e.Destination = destination
	e.State = domain.StateSetup
	return nil
}

// BeginSetup performs the setup step: for totp it issues a fresh shared secret
// and QR reference; for sms and email it generates and dispatches a challenge
// code. On success the enrollment moves setup → verify. On collaborator
// failure the enrollment stays in setup and the transition may be retried.
//
// Re-entering setup after backing out always produces a fresh secret or
// challenge; nothing issued earlier survives.
func (m *Machine) BeginSetup(ctx context.Context, e *domain.Enrollment, account string) error {
	if e.State != domain.StateSetup {
		return ErrInvalidTransition
	}
	switch e.Method {
	case domain.MethodTOTP:
		secret, qrRef, err := m.issuer.IssueTOTP(ctx, account)
		if err != nil {
			return err
		}
		e.Secret = secret
		e.QRCodeReference = qrRef
	case domain.MethodSMS, domain.MethodEmail:
		code, err := GenerateCode()
		if err != nil {
			return err
		}
		if err := m.sender.SendCode(ctx, e.Method, e.Destination, code); err != nil {
			return err
		}
		e.ChallengeHash = HashCode(code)
	default:
		return ErrUnsupportedMethod
	}
	e.State = domain.StateVerify
	return nil
}

// SubmitCode verifies the six-digit code the user entered. On success the
// enrollment moves verify → backup_display with freshly generated backup
// codes attached. A malformed or mismatching code leaves the state unchanged.
func (m *Machine) SubmitCode(ctx context.Context, e *domain.Enrollment, code string) error {
	if e.State != domain.StateVerify {
		return ErrInvalidTransition
	}
	if !wellFormedCode(code) {
		return ErrMalformedCode
	}
	switch e.Method {
	case domain.MethodTOTP:
		if !m.verifier.VerifyTOTP(code, e.Secret) {
			return ErrCodeMismatch
		}
	default:
		if !CodeEqual(e.ChallengeHash, code) {
			return ErrCodeMismatch
		}
	}
	codes, err := GenerateBackupCodes(m.backups)
	if err != nil {
		return err
	}
	e.BackupCodes = codes
	e.State = domain.StateBackupDisplay
	return nil
}

// Acknowledge records that the user confirmed saving their backup codes and
// moves backup_display → complete. This is the only transition that persists
// anything: the confirmed factor and the hashed backup codes are written
// together, after which the plaintext codes are cleared from the enrollment.
func (m *Machine) Acknowledge(ctx context.Context, e *domain.Enrollment) error {
	if e.State != domain.StateBackupDisplay {
		return ErrInvalidTransition
	}
	if err := m.factors.RecordFactor(ctx, e); err != nil {
		return err
	}
	e.BackupCodes = nil
	e.Secret = ""
	e.ChallengeHash = ""
	e.State = domain.StateComplete
	return nil
}

// Back steps the enrollment to the previous state, discarding whatever the
// step being left produced: leaving verify drops the issued secret and
// challenge, leaving backup_display drops the generated backup codes. Backing
// out of method_selection or complete is not allowed.
func (m *Machine) Back(e *domain.Enrollment) error {
	switch e.State {
	case domain.StateSetup:
		e.Method = ""
		e.Destination = ""
		e.State = domain.StateMethodSelection
	case domain.StateVerify:
		e.Secret = ""
		e.QRCodeReference = ""
		e.ChallengeHash = ""
		e.State = domain.StateSetup
	case domain.StateBackupDisplay:
		e.BackupCodes = nil
		e.State = domain.StateVerify
	default:
		return ErrInvalidTransition
	}
	return nil
}

func wellFormedCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
