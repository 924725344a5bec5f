package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, classify(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)), domain.ErrNotFound)

	collision := classify(&pgconn.PgError{Code: codeExclusionViolation, Message: "conflicting key value"})
	assert.ErrorIs(t, collision, domain.ErrCollision)
	assert.Contains(t, collision.Error(), "conflicting key value")

	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable} {
		assert.ErrorIs(t, classify(&pgconn.PgError{Code: code}), domain.ErrTransient, code)
	}

	other := errors.New("syntax error")
	assert.Equal(t, other, classify(other))
	assert.Equal(t, domain.CodeInternal, domain.Code(classify(&pgconn.PgError{Code: "42601"})))
}

// setupTestStore connects to the database named by SLOTBOOK_TEST_POSTGRES_DSN.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SLOTBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SLOTBOOK_TEST_POSTGRES_DSN not set")
	}

	logger := zerolog.Nop()
	ctx := context.Background()
	store, err := Open(ctx, dsn, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.pool.Exec(ctx, `TRUNCATE bookings, availability, services, businesses, sync_queue`)
	require.NoError(t, err)
	return store
}

func TestStoreBookingLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveBusiness(ctx, &models.Business{ID: "biz-1", Name: "Barber", IsActive: true}))
	svc := &models.Service{ID: "svc-1", BusinessID: "biz-1", Name: "Haircut", DurationMinutes: 30, Price: decimal.RequireFromString("25.50"), IsActive: true}
	require.NoError(t, store.SaveService(ctx, svc))

	got, err := store.GetService(ctx, "svc-1")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(svc.Price))

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	first := &models.Booking{BusinessID: "biz-1", ServiceID: "svc-1", CustomerName: "Ann", CustomerEmail: "a@x", StartTime: start, EndTime: start.Add(30 * time.Minute), DurationMinutes: 30}
	require.NoError(t, store.CreateBookingWithLock(ctx, first))
	assert.NotEmpty(t, first.ID)

	overlapping := &models.Booking{BusinessID: "biz-1", ServiceID: "svc-1", CustomerName: "Bob", CustomerEmail: "b@x", StartTime: start.Add(15 * time.Minute), EndTime: start.Add(45 * time.Minute), DurationMinutes: 30}
	err = store.CreateBookingWithLock(ctx, overlapping)
	assert.ErrorIs(t, err, domain.ErrCollision)

	touching := &models.Booking{BusinessID: "biz-1", ServiceID: "svc-1", CustomerName: "Cid", CustomerEmail: "c@x", StartTime: start.Add(30 * time.Minute), EndTime: start.Add(time.Hour), DurationMinutes: 30}
	require.NoError(t, store.CreateBookingWithLock(ctx, touching))

	cancelled, err := store.CancelBooking(ctx, first.ID, start.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	overlapping.ID = ""
	overlapping.EndTime = start.Add(30 * time.Minute)
	overlapping.StartTime = start
	require.NoError(t, store.CreateBookingWithLock(ctx, overlapping))

	active, err := store.ListActiveBookings(ctx, "biz-1", start, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = store.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreExclusionConstraint(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	insert := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, 'biz-1', 'svc-1', '', 'x', 'x', $2, $3, 30, 'confirmed', '', now(), now(), NULL)`
	_, err := store.pool.Exec(ctx, insert, "a", start, start.Add(30*time.Minute))
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, insert, "b", start.Add(10*time.Minute), start.Add(40*time.Minute))
	assert.ErrorIs(t, classify(err), domain.ErrCollision)
}

func TestStoreSyncQueue(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	task := &models.SyncTask{TaskType: models.SyncTaskUpsert, BookingID: "b-1", Payload: "{}"}
	require.NoError(t, store.CreateSyncTask(ctx, task))
	require.NotZero(t, task.ID)

	pending, err := store.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].BookingID)

	later := time.Now().Add(time.Hour)
	require.NoError(t, store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "boom", &later))
	pending, err = store.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, "gave up", nil))
	failed, err := store.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].RetryCount)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "gave up", *failed[0].LastError)
	assert.NotNil(t, failed[0].ProcessedAt)
}
