// Package twofactor manages the second authentication factor: TOTP
// secret enrollment and one-time code verification (RFC 6238).
package twofactor

import (
	"regexp"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// secretSize is the entropy of a generated TOTP secret in bytes.
	secretSize = 20

	qrImageSize = 256
)

var codeRegexp = regexp.MustCompile(`^\d{6}$`)

// Enrollment is the provisioning artifact handed to the user once during
// setup. Secret is the clear base32 secret; the caller must encrypt it
// immediately and never persist or log it.
type Enrollment struct {
	Secret string
	URI    string
	QR     []byte // PNG encoding of URI
}

type Manager struct {
	issuer string
}

func NewManager(issuer string) *Manager {
	return &Manager{issuer: issuer}
}

// Enroll generates a fresh TOTP secret for the identity and renders the
// otpauth provisioning URI plus a scannable QR image.
func (m *Manager) Enroll(identity string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: identity,
		SecretSize:  secretSize,
	})
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QR:     png,
	}, nil
}

// VerifyCode validates a submitted code against the base32 secret with
// the conventional ±1 time-step clock-skew tolerance. Input that is not
// exactly six digits is rejected before any cryptographic work. An
// invalid code yields false, never an error.
func (m *Manager) VerifyCode(secret, code string) bool {
	if !IsCode(code) {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})

	return err == nil && ok
}

// IsCode reports whether s looks like a 6-digit one-time code.
func IsCode(s string) bool {
	return codeRegexp.MatchString(s)
}
