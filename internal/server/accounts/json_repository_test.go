package accounts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

func testAccount(identity string) *Account {
	return &Account{
		Identity:    identity,
		DisplayName: "tester",
		PINVerifier: "$2a$10$abcdefghijklmnopqrstuv",
		SecondFactor: SecondFactor{
			CipherText: "deadbeef",
			IV:         "cafebabecafebabecafebabe",
		},
		Wallet: Wallet{
			PublicKey:           "4Nd1mYQZ5xwLn8dVZ5wFyWgYzF7kYtCYV3K2kqzW2NEV",
			EncryptedPrivateKey: "00112233",
			IV:                  "aabbccddeeff00112233aabb",
			Salt:                "a1b2c3d4e5f60718293a4b5c6d7e8f90",
		},
	}
}

func newTestRepo(t *testing.T) *JSONRepository {
	t.Helper()
	repo, err := NewJSONRepository(filepath.Join(t.TempDir(), "data", "accounts.json"))
	require.NoError(t, err)
	return repo
}

func TestJSONRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "42")
	assert.ErrorIs(t, err, shared.ErrorNotFound)
}

func TestJSONRepository_PutGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	account := testAccount("42")
	require.NoError(t, repo.PutAll(ctx, map[string]*Account{"42": account}))

	// read-after-write
	got, err := repo.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestJSONRepository_PutAllMerges(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutAll(ctx, map[string]*Account{"42": testAccount("42")}))
	require.NoError(t, repo.PutAll(ctx, map[string]*Account{"43": testAccount("43")}))

	_, err := repo.Get(ctx, "42")
	assert.NoError(t, err)
	_, err = repo.Get(ctx, "43")
	assert.NoError(t, err)
}

func TestJSONRepository_RejectsIncomplete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, mutate := range []func(*Account){
		func(a *Account) { a.PINVerifier = "" },
		func(a *Account) { a.SecondFactor = SecondFactor{} },
		func(a *Account) { a.Wallet = Wallet{} },
		func(a *Account) { a.Wallet.Salt = "" },
	} {
		account := testAccount("42")
		mutate(account)

		err := repo.PutAll(ctx, map[string]*Account{"42": account})
		assert.ErrorIs(t, err, shared.ErrIncompleteAccount)

		// nothing was written
		_, err = repo.Get(ctx, "42")
		assert.ErrorIs(t, err, shared.ErrorNotFound)
	}
}

func TestJSONRepository_WireLayout(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutAll(ctx, map[string]*Account{"42": testAccount("42")}))

	data, err := os.ReadFile(repo.path)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	record := raw["42"]
	require.NotNil(t, record)
	assert.Contains(t, record, "pinVerifier")
	assert.Contains(t, record, "secondFactor")
	assert.Contains(t, record, "wallet")

	wallet := record["wallet"].(map[string]any)
	for _, field := range []string{"publicKey", "encryptedPrivateKey", "iv", "salt"} {
		assert.Contains(t, wallet, field)
	}
}
