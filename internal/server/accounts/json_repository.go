package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/filex"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

// JSONRepository keeps all account records in a single JSON file keyed
// by identity. Writes replace the file atomically (temp file + rename),
// so a reader never observes a half-written record.
type JSONRepository struct {
	mu   sync.Mutex
	path string
}

func NewJSONRepository(path string) (*JSONRepository, error) {
	abs, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, err
	}

	r := &JSONRepository{path: abs}

	if _, err := os.Stat(abs); os.IsNotExist(err) {
		if err := filex.WriteFileAtomic(abs, []byte("{}"), 0o600); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *JSONRepository) Get(ctx context.Context, identity string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	account, ok := records[identity]
	if !ok {
		return nil, shared.ErrorNotFound
	}

	return account, nil
}

func (r *JSONRepository) PutAll(ctx context.Context, records map[string]*Account) error {
	for identity, account := range records {
		if !account.Complete() {
			return fmt.Errorf("%w: %s", shared.ErrIncompleteAccount, identity)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load()
	if err != nil {
		return err
	}

	for identity, account := range records {
		existing[identity] = account
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal accounts: %w", err)
	}

	return filex.WriteFileAtomic(r.path, data, 0o600)
}

func (r *JSONRepository) load() (map[string]*Account, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	records := map[string]*Account{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	return records, nil
}
