package domain

import "time"

// Method is the MFA method being enrolled.
type Method string

const (
	MethodTOTP  Method = "totp"
	MethodSMS   Method = "sms"
	MethodEmail Method = "email"
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	switch m {
	case MethodTOTP, MethodSMS, MethodEmail:
		return true
	default:
		return false
	}
}

// State is the enrollment wizard step. Transitions are linear with explicit
// back steps; see the machine for the transition rules.
type State int

const (
	StateMethodSelection State = iota
	StateSetup
	StateVerify
	StateBackupDisplay
	StateComplete
)

// String returns the snake_case name used in API responses and logs.
func (s State) String() string {
	switch s {
	case StateMethodSelection:
		return "method_selection"
	case StateSetup:
		return "setup"
	case StateVerify:
		return "verify"
	case StateBackupDisplay:
		return "backup_display"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so State serializes as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Enrollment is one in-progress MFA enrollment, exclusively owned by the
// enrolling principal. Transient fields (Secret, ChallengeHash, BackupCodes)
// live only between the transitions that create and consume them; abandoning
// the enrollment before completion leaves no standing factor.
type Enrollment struct {
	UserID          string
	Method          Method
	Secret          string // TOTP shared secret; present only during setup→verify
	QRCodeReference string // otpauth:// URL rendered as a QR code by the client
	ChallengeHash   string // hash of the dispatched SMS/email code
	Destination     string // phone number or email the challenge was sent to
	BackupCodes     []string
	State           State
	CreatedAt       time.Time
}
