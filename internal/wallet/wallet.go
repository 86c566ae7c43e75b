// Package wallet generates Solana signing key pairs and reads balances.
package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const lamportsPerSol = 1_000_000_000

// Generate mints a fresh ed25519 key pair. The private key is the raw
// 64-byte secret; the caller encrypts it immediately and wipes the
// clear copy.
func Generate() (publicKey string, privateKey []byte, err error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return "", nil, fmt.Errorf("keypair generation: %w", err)
	}

	return priv.PublicKey().String(), []byte(priv), nil
}

// Balance returns the SOL balance of a base58 public key.
func Balance(ctx context.Context, client *rpc.Client, publicKey string) (float64, error) {
	pub, err := solana.PublicKeyFromBase58(publicKey)
	if err != nil {
		return 0, fmt.Errorf("bad public key: %w", err)
	}

	out, err := client.GetBalance(ctx, pub, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("balance query: %w", err)
	}

	return float64(out.Value) / lamportsPerSol, nil
}
