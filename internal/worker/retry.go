package worker

import (
	"context"
	"math"
	"time"
)

// RetryPolicy is exponential backoff. MaxRetries counts every attempt, the first included.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the wait after the given failed attempt (1-based), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// Do calls fn until it succeeds, attempts run out or ctx is done while
// waiting. onRetry, if set, is told about each failure that will be retried.
// It returns the last error and the number of attempts made.
func (r RetryPolicy) Do(ctx context.Context, fn func() error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	maxAttempts := r.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return attempt, nil
		}
		if attempt >= maxAttempts {
			return attempt, err
		}

		wait := r.NextDelay(attempt)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
	}
}
