// Package registration drives the account-enrollment state machine:
// PIN collection and policy validation, second-factor enrollment and
// confirmation, key-pair generation, encryption at rest, and the single
// atomic write of the finished account record.
package registration

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/cryptox"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/accounts"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/transport"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/twofactor"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/wallet"
)

const (
	promptCreatePin = "Welcome! To set up your account, please create a PIN.\n" +
		"Your PIN must be at least 8 characters, contain letters, numbers, and at least 1 special character.\n" +
		"Enter your desired PIN now."

	promptInvalidPin = "Invalid PIN. Must be 8+ chars, contain letters, numbers, and a special character.\nTry again."

	promptInvalidCode = "Please enter a valid 6-digit code from your authenticator app."

	promptWrongCode = "Invalid TOTP code. Please try again."

	promptFailed = "Registration failed. Please send /start to try again."
)

// Machine owns the registry of in-flight enrollment sessions. Session
// state is touched only under the per-session lock, so concurrent
// messages from one identity are serialized while other identities
// proceed independently.
type Machine struct {
	mu       sync.Mutex
	sessions map[string]*session

	repo         accounts.Repository
	twoFactor    *twofactor.Manager
	serverCipher *cryptox.ServerCipher
	messenger    transport.Messenger
	log          logging.Logger
	ttl          time.Duration
}

func NewMachine(
	repo accounts.Repository,
	twoFactor *twofactor.Manager,
	serverCipher *cryptox.ServerCipher,
	messenger transport.Messenger,
	log logging.Logger,
	ttl time.Duration,
) *Machine {
	return &Machine{
		sessions:     make(map[string]*session),
		repo:         repo,
		twoFactor:    twoFactor,
		serverCipher: serverCipher,
		messenger:    messenger,
		log:          log.With("component", "registration"),
		ttl:          ttl,
	}
}

// Begin starts (or restarts) enrollment for an identity and prompts for
// a PIN. The caller has already checked that no account record exists.
func (m *Machine) Begin(ctx context.Context, identity, displayName string) error {
	s := &session{stage: stageAwaitingPin, displayName: displayName}
	s.touch()

	m.mu.Lock()
	old := m.sessions[identity]
	m.sessions[identity] = s
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.terminate()
		old.mu.Unlock()
	}

	m.log.Info(ctx, "registration started", "identity", identity)
	return m.messenger.SendText(ctx, identity, promptCreatePin)
}

// Active reports whether the identity has an enrollment in flight.
func (m *Machine) Active(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[identity] != nil
}

// HandleText feeds one inbound message into the identity's enrollment
// session. It returns false when no session exists, so the caller can
// route the message elsewhere. Messages for later stages sent too early
// simply hit the current stage's validation and are re-prompted.
func (m *Machine) HandleText(ctx context.Context, identity, text string) bool {
	m.mu.Lock()
	s := m.sessions[identity]
	m.mu.Unlock()
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.touch()

	switch s.stage {
	case stageAwaitingPin:
		m.handlePin(ctx, identity, s, text)
	case stageAwaitingSecondFactorConfirmation:
		m.handleConfirmation(ctx, identity, s, text)
	}

	return true
}

func (m *Machine) handlePin(ctx context.Context, identity string, s *session, text string) {
	if !ValidPin(text) {
		m.send(ctx, identity, promptInvalidPin)
		return
	}

	verifier, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		m.fail(ctx, identity, s, fmt.Errorf("pin hashing: %w", err))
		return
	}

	enrollment, err := m.twoFactor.Enroll(identity)
	if err != nil {
		m.fail(ctx, identity, s, fmt.Errorf("second factor enrollment: %w", err))
		return
	}

	cipherText, iv, err := m.serverCipher.Encrypt([]byte(enrollment.Secret))
	if err != nil {
		m.fail(ctx, identity, s, fmt.Errorf("second factor encryption: %w", err))
		return
	}

	caption := "Scan this QR code in your authenticator app, or manually enter this key:\n" +
		enrollment.Secret +
		"\nThen enter the 6-digit code to confirm setup."

	if err := m.messenger.SendPhoto(ctx, identity, enrollment.QR, caption); err != nil {
		m.fail(ctx, identity, s, fmt.Errorf("enrollment delivery: %w", err))
		return
	}

	s.pin = []byte(text)
	s.pinVerifier = string(verifier)
	s.secretCipherText = hex.EncodeToString(cipherText)
	s.secretIV = hex.EncodeToString(iv)
	s.stage = stageAwaitingSecondFactorConfirmation

	m.log.Info(ctx, "pin accepted, awaiting second-factor confirmation", "identity", identity)
}

func (m *Machine) handleConfirmation(ctx context.Context, identity string, s *session, text string) {
	if !twofactor.IsCode(text) {
		m.send(ctx, identity, promptInvalidCode)
		return
	}

	secret, err := m.decryptPendingSecret(s)
	if err != nil {
		m.fail(ctx, identity, s, fmt.Errorf("pending secret: %w", err))
		return
	}

	ok := m.twoFactor.VerifyCode(string(secret), text)
	shared.WipeByteArray(secret)
	if !ok {
		m.send(ctx, identity, promptWrongCode)
		return
	}

	// second factor proven — mint the signing key pair
	publicKey, privateKey, err := wallet.Generate()
	if err != nil {
		m.fail(ctx, identity, s, fmt.Errorf("wallet generation: %w", err))
		return
	}

	encryptedKey, iv, salt, err := cryptox.EncryptPrivateKey(privateKey, s.pin)
	if err != nil {
		shared.WipeByteArray(privateKey)
		m.fail(ctx, identity, s, fmt.Errorf("wallet encryption: %w", err))
		return
	}

	record := &accounts.Account{
		Identity:    identity,
		DisplayName: s.displayName,
		PINVerifier: s.pinVerifier,
		SecondFactor: accounts.SecondFactor{
			CipherText: s.secretCipherText,
			IV:         s.secretIV,
		},
		Wallet: accounts.Wallet{
			PublicKey:           publicKey,
			EncryptedPrivateKey: hex.EncodeToString(encryptedKey),
			IV:                  hex.EncodeToString(iv),
			Salt:                hex.EncodeToString(salt),
		},
	}

	if err := m.repo.PutAll(ctx, map[string]*accounts.Account{identity: record}); err != nil {
		shared.WipeByteArray(privateKey)
		m.fail(ctx, identity, s, fmt.Errorf("account persistence: %w", err))
		return
	}

	// sole disclosure opportunity for the clear private key
	privateKeyHex := hex.EncodeToString(privateKey)
	shared.WipeByteArray(privateKey)

	m.send(ctx, identity,
		"2FA setup successful!\n"+
			"Your new Solana address: "+publicKey+"\n\n"+
			"Here is your private key (hex), shown only once:\n"+privateKeyHex+"\n\n"+
			"Keep it safe! Use /balance to check your SOL balance.")

	m.log.Info(ctx, "registration complete", "identity", identity, "publicKey", publicKey)

	s.terminate()
	m.remove(identity, s)
}

func (m *Machine) decryptPendingSecret(s *session) ([]byte, error) {
	cipherText, err := hex.DecodeString(s.secretCipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	iv, err := hex.DecodeString(s.secretIV)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	return m.serverCipher.Decrypt(cipherText, iv)
}

// Sweep expires sessions idle longer than the configured TTL, so cached
// PIN material cannot be retained indefinitely. Returns the number of
// sessions removed.
func (m *Machine) Sweep(now time.Time) int {
	m.mu.Lock()
	candidates := make(map[string]*session, len(m.sessions))
	for identity, s := range m.sessions {
		candidates[identity] = s
	}
	m.mu.Unlock()

	removed := 0
	for identity, s := range candidates {
		s.mu.Lock()
		expired := !s.done && now.Sub(s.lastActivity) > m.ttl
		if expired {
			s.terminate()
		}
		s.mu.Unlock()

		if expired {
			m.remove(identity, s)
			removed++
		}
	}

	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is canceled.
func (m *Machine) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := m.Sweep(now); n > 0 {
					m.log.Info(ctx, "expired idle registration sessions", "count", n)
				}
			}
		}
	}()
}

func (m *Machine) fail(ctx context.Context, identity string, s *session, err error) {
	m.log.Error(ctx, "registration failed", "identity", identity, "error", err.Error())
	m.send(ctx, identity, promptFailed)
	s.terminate()
	m.remove(identity, s)
}

func (m *Machine) send(ctx context.Context, identity, text string) {
	if err := m.messenger.SendText(ctx, identity, text); err != nil {
		m.log.Warn(ctx, "reply delivery failed", "identity", identity, "error", err.Error())
	}
}

func (m *Machine) remove(identity string, s *session) {
	m.mu.Lock()
	if current, ok := m.sessions[identity]; ok && current == s {
		delete(m.sessions, identity)
	}
	m.mu.Unlock()
}

// ValidPin enforces the PIN policy: at least 8 characters with at least
// one letter, one digit and one non-alphanumeric character.
func ValidPin(pin string) bool {
	if len(pin) < 8 {
		return false
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range pin {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	return hasLetter && hasDigit && hasSpecial
}
