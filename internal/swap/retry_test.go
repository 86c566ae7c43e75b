package swap

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
)

type fakeExecutor struct {
	calls int
	errs  []error
	txID  string
}

func (f *fakeExecutor) Execute(ctx context.Context, signingKey []byte, req Request) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return "", f.errs[f.calls-1]
	}
	return f.txID, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func TestRetryExecutor_SuccessFirstAttempt(t *testing.T) {
	inner := &fakeExecutor{txID: "tx-1"}
	r := NewRetryExecutor(inner, testLogger())

	txID, err := r.Execute(context.Background(), []byte("key"), Request{ID: "r1", OutputMint: "mint"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", txID)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryExecutor_RetriesExpiredWindowOnce(t *testing.T) {
	inner := &fakeExecutor{txID: "tx-2", errs: []error{ErrValidityWindowExpired}}
	r := NewRetryExecutor(inner, testLogger())

	txID, err := r.Execute(context.Background(), []byte("key"), Request{ID: "r2"})
	require.NoError(t, err)
	assert.Equal(t, "tx-2", txID)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryExecutor_TwoExpirationsAreTerminal(t *testing.T) {
	inner := &fakeExecutor{errs: []error{ErrValidityWindowExpired, ErrValidityWindowExpired}}
	r := NewRetryExecutor(inner, testLogger())

	_, err := r.Execute(context.Background(), []byte("key"), Request{ID: "r3"})
	assert.ErrorIs(t, err, ErrValidityWindowExpired)

	// exactly two attempts, never three
	assert.Equal(t, 2, inner.calls)
}

func TestRetryExecutor_OtherErrorsNotRetried(t *testing.T) {
	boom := errors.New("no swap routes found")
	inner := &fakeExecutor{errs: []error{boom}}
	r := NewRetryExecutor(inner, testLogger())

	_, err := r.Execute(context.Background(), []byte("key"), Request{ID: "r4"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, inner.calls)
}
