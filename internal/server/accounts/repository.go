// Package accounts stores per-user account records: the PIN verifier,
// the encrypted second-factor secret and the encrypted wallet.
package accounts

import "context"

// Repository is the account record store. Implementations must provide
// atomic full-record writes and immediate read-after-write consistency.
type Repository interface {
	// Get returns the record for the identity, or shared.ErrorNotFound.
	Get(ctx context.Context, identity string) (*Account, error)

	// PutAll upserts the given records in one atomic step. It rejects
	// any record that is not Complete with shared.ErrIncompleteAccount
	// without writing anything.
	PutAll(ctx context.Context, records map[string]*Account) error
}
