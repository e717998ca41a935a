package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "pokeagent/pkg/errors"
)

// Policy bounds how often an operation is attempted. MaxAttempts counts the
// first call, so 1 disables retrying.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// RetryWithCallback runs fn until it succeeds, returns an error classified
// as fatal by pkg/errors, the policy is exhausted or ctx is done. onRetry is
// called before each new attempt.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 1
	}

	var b backoff.BackOff = newBackOff(policy)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		if !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, NextDelay(attempt, policy.InitialInterval, policy.Multiplier, policy.MaxInterval))
		}

		return err
	}

	return backoff.Retry(operation, b)
}
