package authorization

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/cryptox"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/accounts"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/swap"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/twofactor"
)

const (
	testPin  = "Secret123!"
	testMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeMessenger struct {
	texts []string
}

func (f *fakeMessenger) SendText(_ context.Context, _ string, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, _ string, _ []byte, _ string) error {
	return nil
}

func (f *fakeMessenger) lastText() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeRepo struct {
	accounts map[string]*accounts.Account
}

func (f *fakeRepo) Get(_ context.Context, identity string) (*accounts.Account, error) {
	a, ok := f.accounts[identity]
	if !ok {
		return nil, shared.ErrorNotFound
	}
	return a, nil
}

func (f *fakeRepo) PutAll(_ context.Context, m map[string]*accounts.Account) error {
	for identity, a := range m {
		f.accounts[identity] = a
	}
	return nil
}

type fakeExecutor struct {
	calls []swap.Request
	keys  [][]byte
	txID  string
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, signingKey []byte, req swap.Request) (string, error) {
	key := make([]byte, len(signingKey))
	copy(key, signingKey)
	f.keys = append(f.keys, key)
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return f.txID, nil
}

type fixture struct {
	machine   *Machine
	repo      *fakeRepo
	messenger *fakeMessenger
	executor  *fakeExecutor

	secret     string
	privateKey []byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	serverKey := make([]byte, 32)
	_, err := rand.Read(serverKey)
	require.NoError(t, err)
	sc, err := cryptox.NewServerCipher(serverKey)
	require.NoError(t, err)

	manager := twofactor.NewManager("test")
	enrollment, err := manager.Enroll("42")
	require.NoError(t, err)

	secretCT, secretIV, err := sc.Encrypt([]byte(enrollment.Secret))
	require.NoError(t, err)

	verifier, err := bcrypt.GenerateFromPassword([]byte(testPin), bcrypt.DefaultCost)
	require.NoError(t, err)

	privateKey := make([]byte, cryptox.PrivateKeySize)
	_, err = rand.Read(privateKey)
	require.NoError(t, err)
	walletCT, walletIV, walletSalt, err := cryptox.EncryptPrivateKey(privateKey, []byte(testPin))
	require.NoError(t, err)

	repo := &fakeRepo{accounts: map[string]*accounts.Account{
		"42": {
			Identity:    "42",
			DisplayName: "alice",
			PINVerifier: string(verifier),
			SecondFactor: accounts.SecondFactor{
				CipherText: hex.EncodeToString(secretCT),
				IV:         hex.EncodeToString(secretIV),
			},
			Wallet: accounts.Wallet{
				PublicKey:           "FakePubKey11111111111111111111111111111111",
				EncryptedPrivateKey: hex.EncodeToString(walletCT),
				IV:                  hex.EncodeToString(walletIV),
				Salt:                hex.EncodeToString(walletSalt),
			},
		},
	}}

	messenger := &fakeMessenger{}
	executor := &fakeExecutor{txID: "5igB3nLx"}
	log := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	machine := NewMachine(repo, manager, sc, executor, messenger, log, 15*time.Minute)

	return &fixture{
		machine:    machine,
		repo:       repo,
		messenger:  messenger,
		executor:   executor,
		secret:     enrollment.Secret,
		privateKey: privateKey,
	}
}

func (f *fixture) code(t *testing.T, ts time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(f.secret, ts, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestBegin_UnknownIdentity(t *testing.T) {
	f := newFixture(t)
	err := f.machine.Begin(context.Background(), "99", testMint)
	assert.ErrorIs(t, err, shared.ErrAccountNotFound)
	assert.False(t, f.machine.Pending("99"))
}

func TestBegin_PromptsForPin(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(context.Background(), "42", testMint))
	assert.True(t, f.machine.Pending("42"))
	assert.Contains(t, f.messenger.lastText(), testMint)
	assert.Contains(t, f.messenger.lastText(), "enter your PIN")
}

func TestHandleText_WrongPinDenies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(ctx, "42", testMint))

	// a single failed attempt is terminal
	assert.True(t, f.machine.HandleText(ctx, "42", "wrong-pin"))
	assert.Equal(t, promptPinDenied, f.messenger.lastText())
	assert.False(t, f.machine.Pending("42"))
	assert.Empty(t, f.executor.calls)

	assert.False(t, f.machine.HandleText(ctx, "42", testPin))
}

func TestHandleText_MalformedCodeReprompts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(ctx, "42", testMint))
	require.True(t, f.machine.HandleText(ctx, "42", testPin))
	assert.Equal(t, promptEnterCode, f.messenger.lastText())

	assert.True(t, f.machine.HandleText(ctx, "42", "abc"))
	assert.Equal(t, promptInvalidCode, f.messenger.lastText())
	assert.True(t, f.machine.Pending("42"), "a malformed code should not consume the attempt")
}

func TestHandleText_WrongCodeDenies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(ctx, "42", testMint))
	require.True(t, f.machine.HandleText(ctx, "42", testPin))

	stale := f.code(t, time.Now().UTC().Add(-10*30*time.Second))
	assert.True(t, f.machine.HandleText(ctx, "42", stale))
	assert.Equal(t, promptCodeDenied, f.messenger.lastText())
	assert.False(t, f.machine.Pending("42"))
	assert.Empty(t, f.executor.calls)
}

func TestHandleText_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(ctx, "42", testMint))
	require.True(t, f.machine.HandleText(ctx, "42", testPin))

	assert.True(t, f.machine.HandleText(ctx, "42", f.code(t, time.Now().UTC())))

	require.Len(t, f.executor.calls, 1)
	assert.Equal(t, testMint, f.executor.calls[0].OutputMint)
	assert.NotEmpty(t, f.executor.calls[0].ID)
	assert.Equal(t, f.privateKey, f.executor.keys[0])

	assert.Contains(t, f.messenger.lastText(), "Swap successful!")
	assert.Contains(t, f.messenger.lastText(), f.executor.txID)
	assert.Contains(t, f.messenger.lastText(), "https://solscan.io/tx/"+f.executor.txID)
	assert.False(t, f.machine.Pending("42"))
}

func TestHandleText_ExecutorFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.executor.err = errors.New("no swap routes found")

	require.NoError(t, f.machine.Begin(ctx, "42", testMint))
	require.True(t, f.machine.HandleText(ctx, "42", testPin))
	assert.True(t, f.machine.HandleText(ctx, "42", f.code(t, time.Now().UTC())))

	assert.Contains(t, f.messenger.lastText(), "Swap failed:")
	assert.False(t, f.machine.Pending("42"))
}

func TestBegin_SupersedesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(ctx, "42", testMint))
	require.True(t, f.machine.HandleText(ctx, "42", testPin))

	otherMint := "So11111111111111111111111111111111111111112"
	require.NoError(t, f.machine.Begin(ctx, "42", otherMint))

	// the replacement starts over at the PIN stage
	require.True(t, f.machine.HandleText(ctx, "42", testPin))
	assert.True(t, f.machine.HandleText(ctx, "42", f.code(t, time.Now().UTC())))

	require.Len(t, f.executor.calls, 1)
	assert.Equal(t, otherMint, f.executor.calls[0].OutputMint)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.machine.Begin(ctx, "42", testMint))

	assert.Equal(t, 0, f.machine.Sweep(time.Now()))
	assert.True(t, f.machine.Pending("42"))

	assert.Equal(t, 1, f.machine.Sweep(time.Now().Add(16*time.Minute)))
	assert.False(t, f.machine.Pending("42"))
}
