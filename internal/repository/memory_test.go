package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotbook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("AcquireRelease", func(t *testing.T) {
		m := NewMemoryLocker()
		lease, err := m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Len())
		require.NoError(t, lease.Release(ctx))
		assert.Equal(t, 0, m.Len())
	})

	t.Run("HeldLockTimesOut", func(t *testing.T) {
		m := NewMemoryLocker()
		_, err := m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = m.Acquire(waitCtx, "k", time.Minute)
		assert.ErrorIs(t, err, ErrLockHeld)
		assert.ErrorIs(t, err, domain.ErrTransient)

		// other keys are independent
		other, err := m.Acquire(ctx, "other", time.Minute)
		require.NoError(t, err)
		require.NoError(t, other.Release(ctx))
	})

	t.Run("ExpiredLockIsTakenOver", func(t *testing.T) {
		m := NewMemoryLocker()
		now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return now }

		first, err := m.Acquire(ctx, "k", time.Second)
		require.NoError(t, err)

		now = now.Add(2 * time.Second)
		second, err := m.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)

		assert.ErrorIs(t, first.Release(ctx), ErrLockLost)
		require.NoError(t, second.Release(ctx))
	})

	t.Run("MutualExclusion", func(t *testing.T) {
		m := NewMemoryLocker()
		m.poll = time.Millisecond

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			inside  int
			maxSeen int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				lease, err := m.Acquire(ctx, "k", time.Minute)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				assert.NoError(t, lease.Release(ctx))
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})
}
