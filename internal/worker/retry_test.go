package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s, got %s", d)
	}
}

func TestRetryPolicyDo(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	ctx := context.Background()

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		calls := 0
		var retried []int
		attempts, err := policy.Do(ctx, func() error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		}, func(attempt int, _ error, _ time.Duration) {
			retried = append(retried, attempt)
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("GivesUp", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		attempts, err := policy.Do(ctx, func() error {
			calls++
			return boom
		}, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("CancelledWhileWaiting", func(t *testing.T) {
		slow := RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		attempts, err := slow.Do(cctx, func() error { return errors.New("down") }, nil)
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})
}
