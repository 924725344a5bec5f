package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"slotbook/internal/domain"

	"github.com/google/uuid"
)

// MemoryLocker is a process-local domain.DayLocker. It serializes writers of one
// process only; the store transaction still guards multi-instance deployments.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
	poll  time.Duration
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

var _ domain.DayLocker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]memoryLock),
		now:   time.Now,
		poll:  defaultPollInterval,
	}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	return acquireLoop(ctx, key, m.poll, func(context.Context) (domain.Lease, bool, error) {
		lease, ok := m.tryAcquire(key, ttl)
		return lease, ok, nil
	})
}

func (m *MemoryLocker) tryAcquire(key string, ttl time.Duration) (domain.Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.locks[key]; ok && now.Before(held.expiresAt) {
		return nil, false
	}

	token := uuid.NewString()
	m.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: m, key: key, token: token}, true
}

func (m *MemoryLocker) release(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.locks[key]
	if !ok || held.token != token {
		return fmt.Errorf("%w: %s", ErrLockLost, key)
	}
	delete(m.locks, key)
	if !m.now().Before(held.expiresAt) {
		return fmt.Errorf("%w: %s", ErrLockLost, key)
	}
	return nil
}

// Len returns the number of tracked locks, expired ones included.
func (m *MemoryLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLease) Release(_ context.Context) error {
	return l.locker.release(l.key, l.token)
}
