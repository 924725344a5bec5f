package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/models"
	"slotbook/internal/repository"
	"slotbook/internal/retry"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// monday is a Monday with a 09:00-17:00 template in every test environment.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}

type testEnv struct {
	db       *database.DB
	bus      *events.EventBus
	booking  *BookingService
	schedule *ScheduleService

	mu        sync.Mutex
	published []string
}

func (e *testEnv) events() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.published...)
}

func testOptions() Options {
	return Options{
		DefaultStepMinutes: 30,
		HidePastSlots:      true,
		LockTTL:            5 * time.Second,
		LockWait:           2 * time.Second,
		Retry:              retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2},
		Location:           time.UTC,
	}
}

// newTestEnv opens a file-backed SQLite store, seeds biz-1 with services and the Monday template,
// and wires both services with an in-memory day locker.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "slotbook.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{db: db, bus: events.NewEventBus(&logger)}
	for _, eventType := range []string{models.EventBookingCreated, models.EventBookingCancelled} {
		eventType := eventType
		env.bus.Subscribe(eventType, func(_ *events.Event) error {
			env.mu.Lock()
			env.published = append(env.published, eventType)
			env.mu.Unlock()
			return nil
		})
	}

	env.booking = NewBookingService(db, repository.NewMemoryLocker(), env.bus, nil, testOptions(), &logger)
	env.booking.now = func() time.Time { return at(monday, 0, 0).Add(-16 * time.Hour) }
	env.schedule = NewScheduleService(db, &logger)

	ctx := context.Background()
	require.NoError(t, env.schedule.SaveBusiness(ctx, &models.Business{ID: "biz-1", Name: "Barber", IsActive: true}))
	for _, svc := range []*models.Service{
		{ID: "svc-30", BusinessID: "biz-1", Name: "Haircut", DurationMinutes: 30, Price: decimal.RequireFromString("25"), IsActive: true},
		{ID: "svc-45", BusinessID: "biz-1", Name: "Colour", DurationMinutes: 45, Price: decimal.RequireFromString("40"), IsActive: true},
		{ID: "svc-60", BusinessID: "biz-1", Name: "Full", DurationMinutes: 60, Price: decimal.RequireFromString("60"), IsActive: true},
	} {
		require.NoError(t, env.schedule.SaveService(ctx, svc))
	}
	require.NoError(t, env.schedule.SetWeeklyTemplate(ctx, "biz-1", []*models.AvailabilityTemplate{
		{DayOfWeek: models.Sunday, StartTime: "10:00", EndTime: "14:00", IsActive: false},
		{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}))
	return env
}

func bookingInput(serviceID string, start time.Time) CreateBookingInput {
	return CreateBookingInput{
		ServiceID:     serviceID,
		StartTime:     start,
		CustomerName:  "Ann",
		CustomerEmail: "ann@example.com",
	}
}

// flakyRepo fails CreateBookingWithLock with the queued errors before delegating.
type flakyRepo struct {
	domain.Repository

	mu    sync.Mutex
	errs  []error
	calls int
}

func (r *flakyRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	r.mu.Lock()
	r.calls++
	var err error
	if len(r.errs) > 0 {
		err, r.errs = r.errs[0], r.errs[1:]
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Repository.CreateBookingWithLock(ctx, b)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Lease), args.Error(1)
}

type mockLease struct {
	mock.Mock
}

func (m *mockLease) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
