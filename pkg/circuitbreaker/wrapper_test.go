package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper_OpensAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	w := NewWrapper(Config{
		Name:        "test-store-open",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: RatioTrip(2, 0.5),
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})

	failing := func(context.Context) error { return fmt.Errorf("store down") }

	require.Error(t, w.Run(context.Background(), failing))
	assert.False(t, w.IsOpen())
	require.Error(t, w.Run(context.Background(), failing))
	assert.True(t, w.IsOpen())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	called := false
	err := w.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-store-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(0), w.Counts().Requests)
}

func TestRatioTrip(t *testing.T) {
	trip := RatioTrip(3, 0.5)
	assert.False(t, trip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
}
