// Package totp provisions and verifies time-based one-time password secrets.
package totp

import (
	"context"

	"github.com/pquerna/otp/totp"
)

// Issuer generates TOTP keys branded with the configured issuer name.
type Issuer struct {
	issuerName string
}

// NewIssuer returns an Issuer. issuerName appears in authenticator apps next
// to the account label.
func NewIssuer(issuerName string) *Issuer {
	return &Issuer{issuerName: issuerName}
}

// IssueTOTP generates a fresh shared secret for account. The returned QR
// reference is the otpauth:// provisioning URL the client renders as a QR code.
func (i *Issuer) IssueTOTP(ctx context.Context, account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      i.issuerName,
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyTOTP checks code against secret using the current time window.
func (i *Issuer) VerifyTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}
