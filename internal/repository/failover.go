package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"slotbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverLocker uses the primary locker (Redis) and switches to the fallback
// (memory) while the primary is unreachable. The primary is retried after a minute.
type FailoverLocker struct {
	primary   domain.DayLocker
	fallback  domain.DayLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

var _ domain.DayLocker = (*FailoverLocker)(nil)

func NewFailoverLocker(primary, fallback domain.DayLocker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	if !f.isDown.Load() || f.recoveryDue() {
		lease, err := f.primary.Acquire(ctx, key, ttl)
		if err == nil {
			if f.isDown.Swap(false) {
				f.logger.Info().Msg("Primary locker recovered")
			}
			return lease, nil
		}
		// contention and caller timeouts are not backend failures
		if errors.Is(err, ErrLockHeld) || ctx.Err() != nil {
			return nil, err
		}
		if !f.isDown.Swap(true) {
			f.logger.Error().Err(err).Msg("Primary locker failed, falling back to memory")
		}
		f.markChecked()
	}

	return f.fallback.Acquire(ctx, key, ttl)
}

func (f *FailoverLocker) recoveryDue() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Since(f.lastCheck) > recoveryInterval
}

func (f *FailoverLocker) markChecked() {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

// Degraded reports whether locks are currently served by the fallback.
func (f *FailoverLocker) Degraded() bool {
	return f.isDown.Load()
}
