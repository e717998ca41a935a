package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func newBackOff(policy Policy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	exp.MaxElapsedTime = policy.MaxElapsedTime
	return exp
}

// NextDelay is the un-jittered delay after the given attempt, capped at
// maxInterval. It is what onRetry callbacks report.
func NextDelay(attempt int, initialInterval time.Duration, multiplier float64, maxInterval time.Duration) time.Duration {
	d := float64(initialInterval) * math.Pow(multiplier, float64(attempt-1))
	if maxInterval > 0 && d > float64(maxInterval) {
		return maxInterval
	}
	return time.Duration(d)
}
