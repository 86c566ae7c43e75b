package cryptox

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

func TestDerivePinKey_Deterministic(t *testing.T) {
	pin := []byte("Secur3!ty")
	salt := []byte("fixed-salt-16byt")

	key1 := DerivePinKey(pin, salt)
	key2 := DerivePinKey(pin, salt)

	assert.Len(t, key1, 32)
	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
}

func TestDerivePinKey_DifferentInputs(t *testing.T) {
	pin := []byte("Secur3!ty")

	key1 := DerivePinKey(pin, []byte("salt-1"))
	key2 := DerivePinKey(pin, []byte("salt-2"))
	key3 := DerivePinKey([]byte("0ther!Pin"), []byte("salt-1"))

	assert.NotEqual(t, key1, key2)
	assert.NotEqual(t, key1, key3)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := shared.GenerateRandByteArray(32)
	plaintext := []byte("attack at dawn")

	ciphertext, nonce, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Decrypt(ciphertext, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_FreshNonce(t *testing.T) {
	key := shared.GenerateRandByteArray(32)

	_, nonce1, err := Encrypt([]byte("x"), key)
	require.NoError(t, err)
	_, nonce2, err := Encrypt([]byte("x"), key)
	require.NoError(t, err)

	assert.NotEqual(t, nonce1, nonce2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := shared.GenerateRandByteArray(32)
	ciphertext, nonce, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, nonce, shared.GenerateRandByteArray(32))
	assert.ErrorIs(t, err, shared.ErrDecryptionFailed)
}

func TestDecrypt_Tampered(t *testing.T) {
	key := shared.GenerateRandByteArray(32)
	ciphertext, nonce, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	_, err = Decrypt(ciphertext, nonce, key)
	assert.ErrorIs(t, err, shared.ErrDecryptionFailed)

	_, err = Decrypt(nil, []byte("shortnonce"), key)
	assert.ErrorIs(t, err, shared.ErrDecryptionFailed)
}

func TestPrivateKey_RoundTrip(t *testing.T) {
	privateKey := shared.GenerateRandByteArray(PrivateKeySize)
	pin := []byte("abcd123!")

	ciphertext, nonce, salt, err := EncryptPrivateKey(privateKey, pin)
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)

	decrypted, err := DecryptPrivateKey(ciphertext, nonce, salt, pin)
	require.NoError(t, err)
	assert.Equal(t, privateKey, decrypted)
}

func TestPrivateKey_WrongPin(t *testing.T) {
	privateKey := shared.GenerateRandByteArray(PrivateKeySize)

	ciphertext, nonce, salt, err := EncryptPrivateKey(privateKey, []byte("abcd123!"))
	require.NoError(t, err)

	// With authenticated encryption a wrong PIN must never yield
	// plausible key material.
	_, err = DecryptPrivateKey(ciphertext, nonce, salt, []byte("abcd124!"))
	assert.Error(t, err)
	assert.True(t,
		errors.Is(err, shared.ErrDecryptionFailed) || errors.Is(err, shared.ErrInvalidKeyLength))
}

func TestPrivateKey_WrongLength(t *testing.T) {
	pin := []byte("abcd123!")

	ciphertext, nonce, salt, err := EncryptPrivateKey([]byte("too short"), pin)
	require.NoError(t, err)

	_, err = DecryptPrivateKey(ciphertext, nonce, salt, pin)
	assert.ErrorIs(t, err, shared.ErrInvalidKeyLength)
}

func TestServerCipher(t *testing.T) {
	_, err := NewServerCipher([]byte("short"))
	assert.Error(t, err)

	c, err := NewServerCipher(shared.GenerateRandByteArray(32))
	require.NoError(t, err)

	secret := []byte("JBSWY3DPEHPK3PXP")
	ciphertext, nonce, err := c.Encrypt(secret)
	require.NoError(t, err)

	decrypted, err := c.Decrypt(ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, secret, decrypted)

	other, err := NewServerCipher(shared.GenerateRandByteArray(32))
	require.NoError(t, err)
	_, err = other.Decrypt(ciphertext, nonce)
	assert.ErrorIs(t, err, shared.ErrDecryptionFailed)
}
