package registration

import (
	"sync"
	"time"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

type stage int

const (
	stageAwaitingPin stage = iota
	stageAwaitingSecondFactorConfirmation
)

// session is the ephemeral per-identity enrollment state. It lives only
// in process memory; nothing is persisted until the final transition
// commits the complete account record. The candidate PIN is cached here
// for the lifetime of the session and wiped on termination.
type session struct {
	mu sync.Mutex

	stage       stage
	displayName string

	pin         []byte
	pinVerifier string

	// TOTP secret encrypted under the server key, pending confirmation.
	secretCipherText string
	secretIV         string

	lastActivity time.Time
	done         bool
}

func (s *session) touch() {
	s.lastActivity = time.Now()
}

// terminate wipes cached secret material and marks the session dead.
// Callers must hold s.mu.
func (s *session) terminate() {
	shared.WipeByteArray(s.pin)
	s.pin = nil
	s.pinVerifier = ""
	s.secretCipherText = ""
	s.secretIV = ""
	s.done = true
}
