package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitterFraction keeps each backoff wait within ±10% of the current
// interval: backoff.ExponentialBackOff's RandomizationFactor picks the
// next interval uniformly from
// [current-factor*current, current+factor*current].
const jitterFraction = 0.1

// RetryPolicy wraps a fallible operation in bounded
// exponential-backoff-with-jitter retries. Total attempts equal
// Retries+1; a cancelled context aborts the current wait immediately
// instead of sleeping it out.
type RetryPolicy struct {
	Retries       int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// Execute invokes op, retrying on any non-nil error until Retries is
// exhausted or ctx is cancelled. The last error is returned verbatim
// once attempts are exhausted.
func (p RetryPolicy) Execute(ctx context.Context, op func(context.Context) (Record, error)) (Record, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.Multiplier = p.BackoffFactor
	bo.RandomizationFactor = jitterFraction
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall-clock

	var limited backoff.BackOff = backoff.WithContext(bo, ctx)
	limited = backoff.WithMaxRetries(limited, uint64(maxInt(p.Retries, 0)))

	var result Record
	err := backoff.Retry(func() error {
		r, err := op(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, limited)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
