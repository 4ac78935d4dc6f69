package attendance

import (
	"crypto/subtle"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// CodeVerifier decides whether a scanned code is the office code at a given time.
type CodeVerifier interface {
	Verify(code string, at time.Time) bool
}

// StaticCode accepts exactly one fixed office code.
type StaticCode string

func (c StaticCode) Verify(code string, _ time.Time) bool {
	return subtle.ConstantTimeCompare([]byte(code), []byte(c)) == 1
}

// TOTPCode accepts the static office code or the current six digit TOTP code for Secret,
// for offices that display a rotating QR code.
type TOTPCode struct {
	Static StaticCode
	Secret string
}

func (c TOTPCode) Verify(code string, at time.Time) bool {
	if c.Static != "" && c.Static.Verify(code, at) {
		return true
	}
	if c.Secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, c.Secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// NewVerifier returns a TOTPCode when secret is set and a StaticCode otherwise.
func NewVerifier(code, secret string) CodeVerifier {
	if secret != "" {
		return TOTPCode{Static: StaticCode(code), Secret: secret}
	}
	return StaticCode(code)
}
