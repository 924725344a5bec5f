package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/models"
	"slotbook/internal/repository"
	"slotbook/internal/retry"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// monday is far enough ahead that no slot is hidden as past.
var monday = time.Date(2099, 6, 1, 0, 0, 0, 0, time.UTC)

type apiEnv struct {
	db       *database.DB
	bookings *service.BookingService
	schedule *service.ScheduleService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	opts := service.Options{
		DefaultStepMinutes: 30,
		HidePastSlots:      true,
		LockTTL:            5 * time.Second,
		LockWait:           2 * time.Second,
		Retry:              retry.Policy{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2},
		Location:           time.UTC,
	}
	env := &apiEnv{
		db:       db,
		bookings: service.NewBookingService(db, repository.NewMemoryLocker(), nil, nil, opts, &logger),
		schedule: service.NewScheduleService(db, &logger),
	}

	ctx := context.Background()
	require.NoError(t, env.schedule.SaveBusiness(ctx, &models.Business{ID: "biz-1", Name: "Barber", IsActive: true}))
	for _, svc := range []*models.Service{
		{ID: "svc-30", BusinessID: "biz-1", Name: "Haircut", DurationMinutes: 30, Price: decimal.RequireFromString("25"), IsActive: true},
		{ID: "svc-60", BusinessID: "biz-1", Name: "Full", DurationMinutes: 60, Price: decimal.RequireFromString("60"), IsActive: true},
	} {
		require.NoError(t, env.schedule.SaveService(ctx, svc))
	}
	require.NoError(t, env.schedule.SetWeeklyTemplate(ctx, "biz-1", []*models.AvailabilityTemplate{
		{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}))
	return env
}

func openAPIConfig() *config.APIConfig {
	return &config.APIConfig{Enabled: true, HTTP: config.APIHTTPConfig{Enabled: true}}
}

func (e *apiEnv) httpServer(t *testing.T, cfg *config.APIConfig, readiness ...ReadinessCheck) *httptest.Server {
	t.Helper()
	logger := zerolog.New(io.Discard)
	srv := NewHTTPServer(cfg, Dependencies{
		Bookings:  e.bookings,
		Schedule:  e.schedule,
		Readiness: readiness,
		Location:  time.UTC,
	}, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func doJSON(t *testing.T, method, url, body string, headers ...string) (*http.Response, apiResponse) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out apiResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}
