package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"roombooking/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLock uses primary until it errors, then serves from fallback and
// retries primary once per recoveryInterval.
type FailoverLock struct {
	primary   domain.Lock
	fallback  domain.Lock
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64

	// token -> backend that issued it
	issued sync.Map
}

func NewFailoverLock(primary, fallback domain.Lock, logger *zerolog.Logger) *FailoverLock {
	return &FailoverLock{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (l *FailoverLock) markDown(err error) {
	if !l.isDown.Swap(true) {
		l.logger.Error().Err(err).Msg("Primary lock failed, falling back to in-process lock")
	}
	l.lastCheck.Store(time.Now().UnixNano())
}

func (l *FailoverLock) shouldTryPrimary() bool {
	if !l.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, l.lastCheck.Load())) > recoveryInterval
}

func (l *FailoverLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l.shouldTryPrimary() {
		token, ok, err := l.primary.Acquire(ctx, key, ttl)
		if err == nil {
			if l.isDown.Swap(false) {
				l.logger.Info().Msg("Primary lock recovered")
			}
			if ok {
				l.issued.Store(token, l.primary)
			}
			return token, ok, nil
		}
		l.markDown(err)
	}

	token, ok, err := l.fallback.Acquire(ctx, key, ttl)
	if err == nil && ok {
		l.issued.Store(token, l.fallback)
	}
	return token, ok, err
}

func (l *FailoverLock) Release(ctx context.Context, key, token string) error {
	backend, ok := l.issued.LoadAndDelete(token)
	if !ok {
		return nil
	}
	return backend.(domain.Lock).Release(ctx, key, token)
}
