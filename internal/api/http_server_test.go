package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/export"
	"slotbook/internal/models"
	"slotbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func createBody(serviceID, start string) string {
	return fmt.Sprintf(`{"service_id":%q,"start_time":%q,"customer_name":"Ann","customer_email":"ann@example.com"}`, serviceID, start)
}

func TestSlotsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-30&date=2099-06-01", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, body.Success)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	var slots []string
	require.NoError(t, json.Unmarshal(body.Data, &slots))
	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0])
	assert.Equal(t, "16:30", slots[15])
	assert.IsIncreasing(t, slots)

	t.Run("closed day is an empty list", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-30&date=2099-06-02", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[]`, string(body.Data))
	})

	t.Run("step override", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-60&date=2099-06-01&step_minutes=60", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var slots []string
		require.NoError(t, json.Unmarshal(body.Data, &slots))
		assert.Len(t, slots, 8)
		assert.Equal(t, "16:00", slots[7])
	})

	errorCases := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing date", "service_id=svc-30", http.StatusBadRequest, domain.CodeValidation},
		{"bad date", "service_id=svc-30&date=01.06.2099", http.StatusBadRequest, domain.CodeValidation},
		{"bad step", "service_id=svc-30&date=2099-06-01&step_minutes=x", http.StatusBadRequest, domain.CodeValidation},
		{"unknown service", "service_id=nope&date=2099-06-01", http.StatusNotFound, domain.CodeNotFound},
		{"foreign business", "service_id=svc-30&business_id=biz-2&date=2099-06-01", http.StatusNotFound, domain.CodeNotFound},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?"+tc.query, "")
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestSlotsEndpoint_ConfigurationError(t *testing.T) {
	env := newAPIEnv(t)
	// Битый шаблон в хранилище, минуя валидацию ScheduleService
	require.NoError(t, env.db.ReplaceAvailabilityTemplates(context.Background(), "biz-1", []*models.AvailabilityTemplate{
		{BusinessID: "biz-1", DayOfWeek: models.Monday, StartTime: "17:00", EndTime: "09:00", IsActive: true},
	}))
	ts := env.httpServer(t, openAPIConfig())

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-30&date=2099-06-01", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.CodeConfiguration, body.Error.Code)
	assert.Equal(t, notAvailableMessage, body.Error.Message)
	assert.NotContains(t, body.Error.Message, "17:00")

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T10:00"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.CodeConfiguration, body.Error.Code)
	assert.Equal(t, notAvailableMessage, body.Error.Message)
}

func TestCreateBookingEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T11:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, body.Success)

	var booking models.Booking
	require.NoError(t, json.Unmarshal(body.Data, &booking))
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, models.StatusConfirmed, booking.Status)
	assert.Equal(t, 30, booking.DurationMinutes)
	assert.True(t, booking.StartTime.Equal(monday.Add(11*time.Hour)))

	t.Run("slot disappears", func(t *testing.T) {
		_, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-30&date=2099-06-01", "")
		var slots []string
		require.NoError(t, json.Unmarshal(body.Data, &slots))
		assert.NotContains(t, slots, "11:00")
		assert.Contains(t, slots, "10:30")
		assert.Contains(t, slots, "11:30")
	})

	t.Run("overlap is a collision", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-60", "2099-06-01T10:45:00Z"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		require.NotNil(t, body.Error)
		assert.Equal(t, domain.CodeCollision, body.Error.Code)
	})

	t.Run("touching interval is accepted", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T11:30:00Z"))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	invalid := []struct {
		name string
		body string
	}{
		{"malformed json", `{"service_id":`},
		{"unknown field", `{"service_id":"svc-30","bogus":1}`},
		{"missing start", `{"service_id":"svc-30","customer_name":"Ann","customer_email":"ann@example.com"}`},
		{"bad start", createBody("svc-30", "tomorrow")},
		{"bad email", `{"service_id":"svc-30","start_time":"2099-06-01T13:00","customer_name":"Ann","customer_email":"nope"}`},
		{"outside availability", createBody("svc-30", "2099-06-01T16:45")},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NotNil(t, body.Error)
			assert.Equal(t, domain.CodeValidation, body.Error.Code)
		})
	}
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	_, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T09:00"))
	var created models.Booking
	require.NoError(t, json.Unmarshal(body.Data, &created))

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched models.Booking
	require.NoError(t, json.Unmarshal(body.Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/cancel", fmt.Sprintf(`{"booking_id":%q}`, created.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cancelled models.Booking
	require.NoError(t, json.Unmarshal(body.Data, &cancelled))
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	// повторная отмена идемпотентна
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings/cancel", fmt.Sprintf(`{"booking_id":%q}`, created.ID))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings?business_id=biz-1&from=2099-06-01&to=2099-06-07", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Bookings []*models.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, models.StatusCancelled, list.Bookings[0].Status)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings?business_id=biz-1&from=2099-06-07&to=2099-06-01", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/bookings?from=2099-06-01", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T09:00"))
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-60", "2099-06-01T14:00"))

	resp, err := http.Get(ts.URL + "/api/v1/bookings/export?business_id=biz-1&from=2099-06-01&to=2099-06-01")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_2099-06-01_to_2099-06-01.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestAvailabilityEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/availability?business_id=biz-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var week weeklyTemplateBody
	require.NoError(t, json.Unmarshal(body.Data, &week))
	require.Len(t, week.Days, 7)
	assert.True(t, week.Days[models.Monday].IsActive)
	assert.False(t, week.Days[models.Sunday].IsActive)

	put := `{"days":[{"day_of_week":2,"start_time":"10:00","end_time":"24:00","is_active":true}]}`
	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/v1/availability?business_id=biz-1", put)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &week))
	assert.False(t, week.Days[models.Monday].IsActive, "overwrite is wholesale")
	assert.True(t, week.Days[models.Tuesday].IsActive)

	_, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-60&date=2099-06-02&step_minutes=60", "")
	var slots []string
	require.NoError(t, json.Unmarshal(body.Data, &slots))
	require.NotEmpty(t, slots)
	assert.Equal(t, "23:00", slots[len(slots)-1])

	bad := `{"days":[{"day_of_week":1,"start_time":"9:00","end_time":"17:00","is_active":true}]}`
	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/v1/availability?business_id=biz-1", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.CodeConfiguration, body.Error.Code)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/availability?business_id=biz-404", put)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/availability?business_id=biz-1", `{"business_id":"biz-2","days":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServicesEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/services",
		`{"business_id":"biz-1","name":"Beard","duration_minutes":15,"price":"12.50","is_active":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var svc models.Service
	require.NoError(t, json.Unmarshal(body.Data, &svc))
	assert.NotEmpty(t, svc.ID)
	assert.Equal(t, "12.5", svc.Price.String())

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/services?business_id=biz-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Services []*models.Service `json:"services"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &list))
	assert.Len(t, list.Services, 3)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/services", `{"business_id":"biz-1","name":"Zero","duration_minutes":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newAPIEnv(t)
	var failing atomic.Bool
	ts := env.httpServer(t, openAPIConfig(),
		ReadinessCheck{Name: "store", Check: env.db.Ping},
		ReadinessCheck{Name: "redis", Check: func(context.Context) error {
			if failing.Load() {
				return errors.New("connection refused")
			}
			return nil
		}},
	)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	failing.Store(true)
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.CodeTransient, body.Error.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	env := newAPIEnv(t)
	ts := env.httpServer(t, openAPIConfig())

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", requestIDHeader, "req-42")
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
}

func TestHTTPAuth(t *testing.T) {
	env := newAPIEnv(t)
	cfg := &config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "r-extra", Permissions: []string{permReadSlots}},
				{Key: "admin", Extra: "a-extra"},
			},
		},
	}
	ts := env.httpServer(t, cfg)
	slotsURL := ts.URL + "/api/v1/slots?service_id=svc-30&date=2099-06-01"

	resp, body := doJSON(t, http.MethodGet, slotsURL, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "unauthorized", body.Error.Code)

	resp, _ = doJSON(t, http.MethodGet, slotsURL, "", "x-api-key", "reader", "x-api-extra", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, slotsURL, "", "x-api-key", "reader", "x-api-extra", "r-extra")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T09:00"),
		"x-api-key", "reader", "x-api-extra", "r-extra")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "forbidden", body.Error.Code)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T09:00"),
		"x-api-key", "admin", "x-api-extra", "a-extra")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// пробы доступны без ключа
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPRateLimit(t *testing.T) {
	env := newAPIEnv(t)
	cfg := openAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 1}
	ts := env.httpServer(t, cfg)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/services?business_id=biz-1", "", "x-api-key", "k1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/services?business_id=biz-1", "", "x-api-key", "k1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "rate_limited", body.Error.Code)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/services?business_id=biz-1", "", "x-api-key", "k2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// transientBookings fails every write with a store contention error.
type transientBookings struct {
	BookingAPI
}

func (transientBookings) CreateBooking(context.Context, service.CreateBookingInput) (*models.Booking, error) {
	return nil, fmt.Errorf("create booking: %w", domain.ErrTransient)
}

func (transientBookings) GenerateSlots(context.Context, service.SlotQuery) ([]string, error) {
	return nil, errors.New("disk on fire")
}

func TestDomainErrorMapping(t *testing.T) {
	logger := zerolog.New(io.Discard)
	srv := NewHTTPServer(openAPIConfig(), Dependencies{Bookings: transientBookings{}, Location: time.UTC}, &logger)
	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/bookings", createBody("svc-30", "2099-06-01T09:00"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.CodeTransient, body.Error.Code)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/slots?service_id=svc-30&date=2099-06-01", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, domain.CodeInternal, body.Error.Code)
	assert.Equal(t, "internal error", body.Error.Message)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[string]int{
		domain.CodeValidation:    http.StatusBadRequest,
		domain.CodeNotFound:      http.StatusNotFound,
		domain.CodeCollision:     http.StatusConflict,
		domain.CodeConfiguration: http.StatusUnprocessableEntity,
		domain.CodeTransient:     http.StatusServiceUnavailable,
		domain.CodeInternal:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, httpStatus(code), code)
	}
}

func TestRequiredPermissionHTTP(t *testing.T) {
	cases := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/slots", permReadSlots},
		{http.MethodPost, "/api/v1/bookings", permWriteBookings},
		{http.MethodPost, "/api/v1/bookings/cancel", permWriteBookings},
		{http.MethodGet, "/api/v1/bookings/abc", permReadBookings},
		{http.MethodGet, "/api/v1/bookings/export", permReadBookings},
		{http.MethodGet, "/api/v1/availability", permReadSlots},
		{http.MethodPut, "/api/v1/availability", permAdminSchedule},
		{http.MethodPost, "/api/v1/services", permAdminSchedule},
		{http.MethodGet, "/metrics", ""},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, http.NoBody)
		assert.Equal(t, tc.want, requiredPermissionHTTP(r), tc.method+" "+tc.path)
	}
}

func TestHTTPServerShutdownWithoutStart(t *testing.T) {
	srv := NewHTTPServer(openAPIConfig(), Dependencies{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
