package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/domain"
)

var (
	// ErrLockHeld means another writer holds the day lock until the wait ran out.
	ErrLockHeld = errors.New("lock is held by another writer")
	// ErrLockLost means the lease expired before it was released.
	ErrLockLost = errors.New("lock expired before release")
)

const defaultPollInterval = 25 * time.Millisecond

type tryFunc func(ctx context.Context) (domain.Lease, bool, error)

// acquireLoop polls try until it takes the lock or ctx is done.
func acquireLoop(ctx context.Context, key string, poll time.Duration, try tryFunc) (domain.Lease, error) {
	if poll <= 0 {
		poll = defaultPollInterval
	}

	for {
		lease, ok, err := try(ctx)
		if ok {
			return lease, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrTransient, ErrLockHeld, key)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: acquire lock %s: %w", domain.ErrTransient, key, err)
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w: %s", domain.ErrTransient, ErrLockHeld, key)
		case <-timer.C:
		}
	}
}
