package domain

import "time"

// Factor is a confirmed standing MFA factor. A factor only exists once the
// enrollment reached complete; rows are written at acknowledgement, never
// before.
type Factor struct {
	ID          string
	UserID      string
	Method      Method
	Secret      string // TOTP shared secret; empty for sms and email
	Destination string // phone number or email for challenge delivery
	CreatedAt   time.Time
	ConfirmedAt time.Time
}
