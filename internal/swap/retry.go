package swap

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
)

// RetryExecutor wraps an Executor with the bounded retry policy for the
// expired-validity-window failure: the whole action (fresh quote, fresh
// blockhash, re-sign) is retried exactly once, two attempts total. Any
// other error is terminal immediately. The bound exists because
// rebuilding has real cost and unbounded retry risks double-submission
// ambiguity.
type RetryExecutor struct {
	inner Executor
	log   logging.Logger
}

func NewRetryExecutor(inner Executor, log logging.Logger) *RetryExecutor {
	return &RetryExecutor{inner: inner, log: log.With("component", "swap")}
}

func (r *RetryExecutor) Execute(ctx context.Context, signingKey []byte, req Request) (string, error) {
	var txID string

	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := r.inner.Execute(ctx, signingKey, req)
		if err != nil {
			if errors.Is(err, ErrValidityWindowExpired) {
				r.log.Warn(ctx, "validity window expired, retrying swap", "request", req.ID)
				return retry.RetryableError(err)
			}
			return err
		}
		txID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return txID, nil
}
