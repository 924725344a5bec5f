package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCatalog(t *testing.T, db *DB) (*models.Business, *models.Service) {
	t.Helper()
	ctx := context.Background()

	biz := &models.Business{ID: "biz-1", Name: "Barber", IsActive: true}
	require.NoError(t, db.SaveBusiness(ctx, biz))

	svc := &models.Service{
		ID:              "svc-1",
		BusinessID:      biz.ID,
		Name:            "Haircut",
		DurationMinutes: 30,
		Price:           decimal.RequireFromString("25.50"),
		IsActive:        true,
	}
	require.NoError(t, db.SaveService(ctx, svc))
	return biz, svc
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.Equal(t, dbPath, db.Path())
}

func TestNewDB_Error(t *testing.T) {
	// a directory cannot be opened as a database file
	logger := zerolog.Nop()
	_, err := NewDB(t.TempDir(), &logger)
	assert.Error(t, err)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	biz, svc := seedCatalog(t, db)

	t.Run("GetBusiness", func(t *testing.T) {
		got, err := db.GetBusiness(ctx, biz.ID)
		require.NoError(t, err)
		assert.Equal(t, "Barber", got.Name)
		assert.True(t, got.IsActive)
	})

	t.Run("UpdateBusiness", func(t *testing.T) {
		biz.TelegramChatID = 42
		require.NoError(t, db.SaveBusiness(ctx, biz))
		got, err := db.GetBusiness(ctx, biz.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.TelegramChatID)
	})

	t.Run("MissingBusiness", func(t *testing.T) {
		_, err := db.GetBusiness(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("GetService", func(t *testing.T) {
		got, err := db.GetService(ctx, svc.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, got.DurationMinutes)
		assert.True(t, got.Price.Equal(decimal.RequireFromString("25.5")))
	})

	t.Run("MissingService", func(t *testing.T) {
		_, err := db.GetService(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListServices", func(t *testing.T) {
		require.NoError(t, db.SaveService(ctx, &models.Service{
			ID: "svc-2", BusinessID: biz.ID, Name: "Beard", DurationMinutes: 15, IsActive: true,
		}))
		services, err := db.ListServices(ctx, biz.ID)
		require.NoError(t, err)
		require.Len(t, services, 2)
		assert.Equal(t, "Beard", services[0].Name)
	})
}

func TestAvailability(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	biz, _ := seedCatalog(t, db)

	_, err := db.GetAvailabilityTemplate(ctx, biz.ID, models.Monday)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	week := []*models.AvailabilityTemplate{
		{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		{DayOfWeek: models.Tuesday, StartTime: "10:00", EndTime: "14:00", IsActive: false},
	}
	require.NoError(t, db.ReplaceAvailabilityTemplates(ctx, biz.ID, week))

	tpl, err := db.GetAvailabilityTemplate(ctx, biz.ID, models.Monday)
	require.NoError(t, err)
	assert.Equal(t, "09:00", tpl.StartTime)
	assert.Equal(t, "17:00", tpl.EndTime)
	assert.True(t, tpl.IsActive)

	// overwrite wholesale: Tuesday disappears
	require.NoError(t, db.ReplaceAvailabilityTemplates(ctx, biz.ID, []*models.AvailabilityTemplate{
		{DayOfWeek: models.Monday, StartTime: "08:00", EndTime: "12:00", IsActive: true},
	}))

	all, err := db.ListAvailabilityTemplates(ctx, biz.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "08:00", all[0].StartTime)

	_, err = db.GetAvailabilityTemplate(ctx, biz.ID, models.Tuesday)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAvailability_DuplicateDayRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	biz, _ := seedCatalog(t, db)

	require.NoError(t, db.ReplaceAvailabilityTemplates(ctx, biz.ID, []*models.AvailabilityTemplate{
		{DayOfWeek: models.Friday, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}))

	err := db.ReplaceAvailabilityTemplates(ctx, biz.ID, []*models.AvailabilityTemplate{
		{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		{DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "11:00", IsActive: true},
	})
	assert.Error(t, err)

	all, err := db.ListAvailabilityTemplates(ctx, biz.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.Friday, all[0].DayOfWeek)
}

func TestClosedDB_Errors(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	now := time.Now()

	_, err = db.GetService(ctx, "svc")
	assert.Error(t, err)
	_, err = db.ListActiveBookings(ctx, "biz", now, now.Add(time.Hour))
	assert.Error(t, err)
	err = db.CreateBookingWithLock(ctx, &models.Booking{})
	assert.Error(t, err)
	err = db.CreateSyncTask(ctx, &models.SyncTask{})
	assert.Error(t, err)
	_, err = db.CancelBooking(ctx, "id", now)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(os.ErrNotExist), os.ErrNotExist)
}
