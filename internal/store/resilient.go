package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"pokeagent/internal/config"
	"pokeagent/internal/logger"
	"pokeagent/pkg/circuitbreaker"
	apperrors "pokeagent/pkg/errors"
	"pokeagent/pkg/metrics"
	"pokeagent/pkg/retry"
)

// Resilient decorates a Writer with the configured retry policy, an
// optional circuit breaker and write metrics. A single attempt policy
// keeps the write fire-and-forget.
type Resilient struct {
	next    Writer
	policy  retry.Policy
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewResilient(next Writer, retryCfg config.RetryConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *Resilient {
	r := &Resilient{
		next: next,
		policy: retry.Policy{
			MaxAttempts:     retryCfg.MaxAttempts,
			InitialInterval: retryCfg.InitialInterval,
			MaxInterval:     retryCfg.MaxInterval,
			Multiplier:      retryCfg.Multiplier,
			MaxElapsedTime:  retryCfg.MaxElapsedTime,
		},
		logger: log,
	}

	if cbCfg.Enabled {
		name := "store-" + next.Name()
		r.breaker = circuitbreaker.NewWrapper(circuitbreaker.Config{
			Name:        name,
			MaxRequests: cbCfg.MaxRequests,
			Interval:    cbCfg.Interval,
			Timeout:     cbCfg.Timeout,
			ReadyToTrip: circuitbreaker.RatioTrip(cbCfg.MinRequests, cbCfg.FailureRatio),
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnw("Store circuit breaker changed state",
					"name", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}

	return r
}

func (r *Resilient) Name() string {
	return r.next.Name()
}

// Healthy reports false while the circuit breaker is open.
func (r *Resilient) Healthy() bool {
	return r.breaker == nil || !r.breaker.IsOpen()
}

func (r *Resilient) Write(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	err := retry.RetryWithCallback(ctx, r.policy, func() error {
		return r.attempt(ctx, points)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt("store_write")
		r.logger.WarnwCtx(ctx, "Retrying store write",
			"store", r.next.Name(),
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	metrics.ObserveStoreWriteDuration(r.next.Name(), time.Since(start))

	if err != nil {
		metrics.IncPointsWritten(r.next.Name(), "error", len(points))
		if !apperrors.IsStoreWrite(err) {
			err = apperrors.ErrStoreWrite.WithCause(err)
		}
		return err
	}

	metrics.IncPointsWritten(r.next.Name(), "ok", len(points))
	return nil
}

func (r *Resilient) attempt(ctx context.Context, points []Point) error {
	if r.breaker == nil {
		return r.next.Write(ctx, points)
	}

	err := r.breaker.Run(ctx, func(ctx context.Context) error {
		return r.next.Write(ctx, points)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.ErrServiceUnavailable.WithCause(err).AsFatal()
	}
	return err
}

func (r *Resilient) Close() error {
	return r.next.Close()
}
