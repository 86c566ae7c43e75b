package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/dbx"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

// PostgresRepository persists account records in the accounts table.
// PutAll runs inside one transaction, so partial batches are never
// visible.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Get(ctx context.Context, identity string) (*Account, error) {
	query :=
		`SELECT identity, display_name, pin_verifier,
		        totp_secret_ciphertext, totp_secret_iv,
		        wallet_public_key, wallet_encrypted_private_key, wallet_iv, wallet_salt
		 FROM accounts
		 WHERE identity = $1
		 `

	account := &Account{}
	err := r.db.QueryRowContext(ctx, query, identity).Scan(
		&account.Identity, &account.DisplayName, &account.PINVerifier,
		&account.SecondFactor.CipherText, &account.SecondFactor.IV,
		&account.Wallet.PublicKey, &account.Wallet.EncryptedPrivateKey,
		&account.Wallet.IV, &account.Wallet.Salt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) PutAll(ctx context.Context, records map[string]*Account) error {
	for identity, account := range records {
		if !account.Complete() {
			return fmt.Errorf("%w: %s", shared.ErrIncompleteAccount, identity)
		}
	}

	query :=
		`INSERT INTO accounts (identity, display_name, pin_verifier,
		        totp_secret_ciphertext, totp_secret_iv,
		        wallet_public_key, wallet_encrypted_private_key, wallet_iv, wallet_salt)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         ON CONFLICT (identity) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            pin_verifier = EXCLUDED.pin_verifier,
            totp_secret_ciphertext = EXCLUDED.totp_secret_ciphertext,
            totp_secret_iv = EXCLUDED.totp_secret_iv,
            wallet_public_key = EXCLUDED.wallet_public_key,
            wallet_encrypted_private_key = EXCLUDED.wallet_encrypted_private_key,
            wallet_iv = EXCLUDED.wallet_iv,
            wallet_salt = EXCLUDED.wallet_salt
		 `

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, account := range records {
			_, err := tx.ExecContext(ctx, query,
				account.Identity, account.DisplayName, account.PINVerifier,
				account.SecondFactor.CipherText, account.SecondFactor.IV,
				account.Wallet.PublicKey, account.Wallet.EncryptedPrivateKey,
				account.Wallet.IV, account.Wallet.Salt,
			)
			if err != nil {
				return fmt.Errorf("error performing sql request: %w", err)
			}
		}
		return nil
	})
}
