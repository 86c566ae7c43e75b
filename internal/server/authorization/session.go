package authorization

import (
	"sync"
	"time"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

type stage int

const (
	stageAwaitingPin stage = iota
	stageAwaitingSecondFactor
)

// session is the ephemeral state of one pending swap approval. The raw
// PIN is cached after verification only because it is needed later to
// re-derive the wallet-decryption key; it is wiped unconditionally when
// the session terminates, whatever the outcome.
type session struct {
	mu sync.Mutex

	stage      stage
	requestID  string
	outputMint string

	pin []byte

	lastActivity time.Time
	done         bool
}

func (s *session) touch() {
	s.lastActivity = time.Now()
}

// terminate wipes the cached PIN and marks the session dead. Callers
// must hold s.mu.
func (s *session) terminate() {
	shared.WipeByteArray(s.pin)
	s.pin = nil
	s.done = true
}
