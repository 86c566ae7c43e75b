// Package swap executes the one privileged action of the system: an
// authorized token swap signed with the user's decrypted wallet key.
package swap

import (
	"context"
	"errors"
)

// ErrValidityWindowExpired means the prepared transaction's blockhash
// lapsed before the network confirmed it. It is the only transient
// error class: the caller may rebuild and retry the whole action.
var ErrValidityWindowExpired = errors.New("transaction validity window expired")

// Request describes one approved swap.
type Request struct {
	// ID correlates log lines across the attempt(s) of one request.
	ID string

	// OutputMint is the destination asset identifier.
	OutputMint string
}

// Executor performs a swap with the given raw signing key. The key
// material must never be logged or retained beyond the call.
type Executor interface {
	Execute(ctx context.Context, signingKey []byte, req Request) (txID string, err error)
}
