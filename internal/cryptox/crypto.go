// Package cryptox implements the secret-protection primitives of the
// wallet backend: PBKDF2 key stretching from a low-entropy PIN and
// AES-256-GCM encryption for the wallet private key and the TOTP secret.
//
// Two key regimes exist on purpose. The wallet private key is encrypted
// under a key derived from the user's PIN plus a per-secret random salt,
// so it is recoverable only in the presence of the correct PIN. The TOTP
// secret is encrypted under a single process-wide server key, because the
// server must decrypt it without user interaction to verify codes.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

const (
	// pinKeyIterations is deliberately expensive to resist offline
	// brute force of the PIN.
	pinKeyIterations = 100_000

	keySize = 32

	// SaltSize is the size of the per-secret random salt stored next to
	// the wallet ciphertext.
	SaltSize = 16

	// PrivateKeySize is the raw ed25519 key-pair size (seed + public).
	PrivateKeySize = 64

	nonceSize = 12
)

// DerivePinKey stretches a PIN and salt into a 256-bit AES key. The
// function is deterministic: the same PIN and salt always produce the
// same key.
func DerivePinKey(pin, salt []byte) []byte {
	return pbkdf2.Key(pin, salt, pinKeyIterations, keySize, sha256.New)
}

// Encrypt seals plaintext with AES-256-GCM under the given key using a
// freshly random nonce. The nonce is returned alongside the ciphertext
// and must be stored with it; it is never reused for a given key.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = shared.GenerateRandByteArray(nonceSize)

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens an AES-256-GCM ciphertext. Any integrity failure —
// wrong key, truncated ciphertext, tampered data — yields
// shared.ErrDecryptionFailed; corrupted output is never returned.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: bad nonce size", shared.ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, shared.ErrDecryptionFailed
	}

	return plaintext, nil
}

// EncryptPrivateKey encrypts raw private-key material under a key
// derived from the PIN and a newly generated salt. The salt and nonce
// are returned for storage alongside the ciphertext.
func EncryptPrivateKey(privateKey, pin []byte) (ciphertext, nonce, salt []byte, err error) {
	salt = shared.GenerateRandByteArray(SaltSize)

	key := DerivePinKey(pin, salt)
	defer shared.WipeByteArray(key)

	ciphertext, nonce, err = Encrypt(privateKey, key)
	if err != nil {
		return nil, nil, nil, err
	}

	return ciphertext, nonce, salt, nil
}

// DecryptPrivateKey reverses EncryptPrivateKey. It fails with
// shared.ErrDecryptionFailed if the PIN does not match, and with
// shared.ErrInvalidKeyLength if the decrypted payload is not exactly
// PrivateKeySize bytes.
func DecryptPrivateKey(ciphertext, nonce, salt, pin []byte) ([]byte, error) {
	key := DerivePinKey(pin, salt)
	defer shared.WipeByteArray(key)

	plaintext, err := Decrypt(ciphertext, nonce, key)
	if err != nil {
		return nil, err
	}

	if len(plaintext) != PrivateKeySize {
		shared.WipeByteArray(plaintext)
		return nil, shared.ErrInvalidKeyLength
	}

	return plaintext, nil
}

// ServerCipher encrypts secrets under a fixed process-wide key supplied
// at startup. Used for the TOTP secret, which the server must be able to
// decrypt on its own to verify codes.
type ServerCipher struct {
	key []byte
}

// NewServerCipher validates and wraps a 32-byte server key.
func NewServerCipher(key []byte) (*ServerCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("server key must be %d bytes, got %d", keySize, len(key))
	}
	return &ServerCipher{key: key}, nil
}

func (c *ServerCipher) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	return Encrypt(plaintext, c.key)
}

func (c *ServerCipher) Decrypt(ciphertext, nonce []byte) ([]byte, error) {
	return Decrypt(ciphertext, nonce, c.key)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
