package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pokeagent/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return apperrors.ErrStoreWrite
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := RetryWithCallback(context.Background(), fastPolicy(5), func() error {
		calls++
		return apperrors.ErrConfig
	}, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(apperrors.ErrStoreWrite))
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		return fmt.Errorf("connection refused")
	}, func(attempt int, err error, next time.Duration) {
		retried = append(retried, attempt)
		assert.LessOrEqual(t, next, 2*time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_SingleAttempt(t *testing.T) {
	calls := 0
	err := RetryWithCallback(context.Background(), Policy{MaxAttempts: 1}, func() error {
		calls++
		return fmt.Errorf("boom")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithCallback(ctx, Policy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Second, Multiplier: 1}, func() error {
		calls++
		return fmt.Errorf("boom")
	}, nil)

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, NextDelay(1, 100*time.Millisecond, 2, time.Second))
	assert.Equal(t, 400*time.Millisecond, NextDelay(3, 100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, NextDelay(10, 100*time.Millisecond, 2, time.Second))
}
