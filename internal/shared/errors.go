// Package shared defines sentinel errors and small secret-hygiene helpers
// used across the wallet backend. Callers should match the errors with
// errors.Is.
package shared

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Account lookup failed for a privileged-action request or a
	// mid-authorization message.
	ErrAccountNotFound = errors.New("account not found")

	// Stored ciphertext failed its integrity check, or the key derived
	// from the supplied PIN does not match.
	ErrDecryptionFailed = errors.New("decryption failed")

	// Decrypted private-key payload is not the expected raw size.
	ErrInvalidKeyLength = errors.New("invalid private key length")

	// Persistence invariant: only fully populated account records may
	// be committed to durable storage.
	ErrIncompleteAccount = errors.New("incomplete account record")

	// Auth errors (invalid or malformed intake token).
	ErrInvalidToken = errors.New("invalid token")
)
