package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock(t *testing.T) {
	lock := NewMemoryLock()
	now := time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }
	ctx := context.Background()

	token, ok, err := lock.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = lock.Acquire(ctx, "job", time.Minute)
	assert.False(t, ok)

	_, ok, _ = lock.Acquire(ctx, "other", time.Minute)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, "job", "wrong"))
	_, ok, _ = lock.Acquire(ctx, "job", time.Minute)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "job", token))
	token, ok, _ = lock.Acquire(ctx, "job", time.Minute)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	now = now.Add(2 * time.Minute)
	_, ok, _ = lock.Acquire(ctx, "job", time.Minute)
	assert.True(t, ok, "expired lease can be taken over")
}
