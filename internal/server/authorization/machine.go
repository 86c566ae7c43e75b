// Package authorization drives the dual-factor approval state machine
// for the one privileged action of the system: a token swap. A pending
// request collects PIN re-entry (single attempt) and a valid one-time
// code, decrypts the wallet key, invokes the executor, and destroys the
// session unconditionally so neither the cached PIN nor the key
// material can outlive the attempt.
package authorization

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/cryptox"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/accounts"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/swap"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/transport"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/twofactor"
)

const (
	promptPinDenied = "Invalid PIN. Transaction denied."

	promptEnterCode = "PIN verified. Now enter your 2FA code (6-digit)."

	promptInvalidCode = "Please enter a valid 6-digit code from your authenticator app."

	promptCodeDenied = "Invalid 2FA code. Transaction denied."

	promptExecuting = "2FA verified, executing swap. Please wait..."
)

// Machine owns the registry of pending approvals, at most one per
// identity. A new privileged-action request replaces any pending one
// unconditionally; the superseded requester is not separately notified.
type Machine struct {
	mu       sync.Mutex
	sessions map[string]*session

	repo         accounts.Repository
	twoFactor    *twofactor.Manager
	serverCipher *cryptox.ServerCipher
	executor     swap.Executor
	messenger    transport.Messenger
	log          logging.Logger
	ttl          time.Duration
}

func NewMachine(
	repo accounts.Repository,
	twoFactor *twofactor.Manager,
	serverCipher *cryptox.ServerCipher,
	executor swap.Executor,
	messenger transport.Messenger,
	log logging.Logger,
	ttl time.Duration,
) *Machine {
	return &Machine{
		sessions:     make(map[string]*session),
		repo:         repo,
		twoFactor:    twoFactor,
		serverCipher: serverCipher,
		executor:     executor,
		messenger:    messenger,
		log:          log.With("component", "authorization"),
		ttl:          ttl,
	}
}

// Begin creates a pending approval for the identity and asks it for PIN
// re-entry via the messaging transport. Returns
// shared.ErrAccountNotFound when no account record exists.
func (m *Machine) Begin(ctx context.Context, identity, outputMint string) error {
	if _, err := m.repo.Get(ctx, identity); err != nil {
		if errors.Is(err, shared.ErrorNotFound) {
			return shared.ErrAccountNotFound
		}
		return err
	}

	s := &session{
		stage:      stageAwaitingPin,
		requestID:  uuid.NewString(),
		outputMint: outputMint,
	}
	s.touch()

	m.mu.Lock()
	old := m.sessions[identity]
	m.sessions[identity] = s
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.terminate()
		old.mu.Unlock()
		m.log.Info(ctx, "pending authorization superseded", "identity", identity)
	}

	m.log.Info(ctx, "authorization requested",
		"identity", identity, "request", s.requestID, "outputMint", outputMint)

	return m.messenger.SendText(ctx, identity,
		fmt.Sprintf("Swap requested.\nOutput mint: %s\n\nPlease enter your PIN to approve.", outputMint))
}

// Pending reports whether the identity has an approval in flight.
func (m *Machine) Pending(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[identity] != nil
}

// HandleText feeds one inbound message into the identity's pending
// approval. Returns false when there is nothing pending, so the caller
// can route the message elsewhere; messages arriving after the session
// reached a terminal state are ignored the same way.
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
	case stageAwaitingSecondFactor:
		m.handleSecondFactor(ctx, identity, s, text)
	}

	return true
}

// handlePin allows exactly one PIN attempt per authorization request: a
// mismatch denies and destroys the session.
func (m *Machine) handlePin(ctx context.Context, identity string, s *session, text string) {
	account, err := m.repo.Get(ctx, identity)
	if err != nil {
		m.log.Error(ctx, "account lookup failed", "identity", identity, "error", err.Error())
		m.send(ctx, identity, "No account record found, cannot authenticate.")
		m.destroy(ctx, identity, s)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PINVerifier), []byte(text)) != nil {
		m.log.Warn(ctx, "authorization denied: wrong pin", "identity", identity, "request", s.requestID)
		m.send(ctx, identity, promptPinDenied)
		m.destroy(ctx, identity, s)
		return
	}

	s.pin = []byte(text)
	s.stage = stageAwaitingSecondFactor
	m.send(ctx, identity, promptEnterCode)
}

func (m *Machine) handleSecondFactor(ctx context.Context, identity string, s *session, text string) {
	if !twofactor.IsCode(text) {
		m.send(ctx, identity, promptInvalidCode)
		return
	}

	account, err := m.repo.Get(ctx, identity)
	if err != nil {
		m.log.Error(ctx, "account lookup failed", "identity", identity, "error", err.Error())
		m.send(ctx, identity, "No 2FA data found. Cannot authenticate.")
		m.destroy(ctx, identity, s)
		return
	}

	secret, err := m.decryptSecondFactor(account)
	if err != nil {
		m.log.Error(ctx, "second factor decryption failed",
			"identity", identity, "request", s.requestID, "error", err.Error())
		m.send(ctx, identity, "Second factor verification failed. Transaction denied.")
		m.destroy(ctx, identity, s)
		return
	}

	ok := m.twoFactor.VerifyCode(string(secret), text)
	shared.WipeByteArray(secret)
	if !ok {
		m.log.Warn(ctx, "authorization denied: wrong code", "identity", identity, "request", s.requestID)
		m.send(ctx, identity, promptCodeDenied)
		m.destroy(ctx, identity, s)
		return
	}

	m.send(ctx, identity, promptExecuting)
	m.execute(ctx, identity, account, s)
	m.destroy(ctx, identity, s)
}

// execute decrypts the wallet key with the cached PIN and invokes the
// privileged action. The session is destroyed by the caller whatever
// happens here, so the key material and cached PIN never survive the
// single attempt.
func (m *Machine) execute(ctx context.Context, identity string, account *accounts.Account, s *session) {
	privateKey, err := m.decryptWalletKey(account, s.pin)
	if err != nil {
		m.log.Error(ctx, "wallet key decryption failed",
			"identity", identity, "request", s.requestID, "error", err.Error())
		m.send(ctx, identity, "Swap failed: "+err.Error())
		return
	}
	defer shared.WipeByteArray(privateKey)

	txID, err := m.executor.Execute(ctx, privateKey, swap.Request{
		ID:         s.requestID,
		OutputMint: s.outputMint,
	})
	if err != nil {
		m.log.Error(ctx, "swap failed", "identity", identity, "request", s.requestID, "error", err.Error())
		m.send(ctx, identity, "Swap failed: "+err.Error())
		return
	}

	m.log.Info(ctx, "swap executed", "identity", identity, "request", s.requestID, "tx", txID)
	m.send(ctx, identity,
		"Swap successful!\nTXID: "+txID+"\n\nView on Solscan: https://solscan.io/tx/"+txID)
}

func (m *Machine) decryptSecondFactor(account *accounts.Account) ([]byte, error) {
	cipherText, err := hex.DecodeString(account.SecondFactor.CipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	iv, err := hex.DecodeString(account.SecondFactor.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	return m.serverCipher.Decrypt(cipherText, iv)
}

func (m *Machine) decryptWalletKey(account *accounts.Account, pin []byte) ([]byte, error) {
	cipherText, err := hex.DecodeString(account.Wallet.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	iv, err := hex.DecodeString(account.Wallet.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	salt, err := hex.DecodeString(account.Wallet.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecryptionFailed, err)
	}
	return cryptox.DecryptPrivateKey(cipherText, iv, salt, pin)
}

// Sweep expires pending approvals idle longer than the configured TTL.
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
					m.log.Info(ctx, "expired idle authorization sessions", "count", n)
				}
			}
		}
	}()
}

func (m *Machine) destroy(ctx context.Context, identity string, s *session) {
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
