package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/export"
	"slotbook/internal/models"
	"slotbook/internal/service"
)

// BookingAPI is the booking core as seen by the transports.
type BookingAPI interface {
	GenerateSlots(ctx context.Context, q service.SlotQuery) ([]string, error)
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error)
}

// ScheduleAPI is the owner settings side.
type ScheduleAPI interface {
	WeeklyTemplate(ctx context.Context, businessID string) ([]*models.AvailabilityTemplate, error)
	SetWeeklyTemplate(ctx context.Context, businessID string, templates []*models.AvailabilityTemplate) error
	ListServices(ctx context.Context, businessID string) ([]*models.Service, error)
	SaveService(ctx context.Context, svc *models.Service) error
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	return nil
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, name)
	}
	return v, nil
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := parseDate(q.Get("date"), s.deps.Location)
	if err != nil {
		writeCustomerError(w, r, err)
		return
	}
	step, err := parseStep(q.Get("step_minutes"))
	if err != nil {
		writeCustomerError(w, r, err)
		return
	}

	slots, err := s.deps.Bookings.GenerateSlots(r.Context(), service.SlotQuery{
		BusinessID:  strings.TrimSpace(q.Get("business_id")),
		ServiceID:   strings.TrimSpace(q.Get("service_id")),
		Date:        date,
		StepMinutes: step,
	})
	if err != nil {
		writeCustomerError(w, r, err)
		return
	}

	if slots == nil {
		slots = []string{}
	}
	writeData(w, http.StatusOK, slots)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body CreateBookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeCustomerError(w, r, err)
		return
	}
	start, err := parseStartTime(body.StartTime, s.deps.Location)
	if err != nil {
		writeCustomerError(w, r, err)
		return
	}

	booking, err := s.deps.Bookings.CreateBooking(r.Context(), service.CreateBookingInput{
		ServiceID:     strings.TrimSpace(body.ServiceID),
		StartTime:     start,
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		Notes:         body.Notes,
	})
	if err != nil {
		writeCustomerError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, _, _, ok := s.bookingsInPeriod(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, from, to, ok := s.bookingsInPeriod(w, r)
	if !ok {
		return
	}

	lastDay := to.AddDate(0, 0, -1)

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, bookings, from, lastDay); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(from, lastDay)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// bookingsInPeriod serves business_id, from and to, returning the half-open period it listed.
// It writes the error response itself.
func (s *HTTPServer) bookingsInPeriod(w http.ResponseWriter, r *http.Request) ([]*models.Booking, time.Time, time.Time, bool) {
	q := r.URL.Query()
	businessID, err := requiredParam(r, "business_id")
	if err != nil {
		writeDomainError(w, r, err)
		return nil, time.Time{}, time.Time{}, false
	}
	from, to, err := parsePeriod(q.Get("from"), q.Get("to"), s.deps.Location)
	if err != nil {
		writeDomainError(w, r, err)
		return nil, time.Time{}, time.Time{}, false
	}

	bookings, err := s.deps.Bookings.ListBookings(r.Context(), businessID, from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return nil, time.Time{}, time.Time{}, false
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, from, to, true
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.deps.Bookings.GetBooking(r.Context(), strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var body CancelBookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeDomainError(w, r, err)
		return
	}

	booking, err := s.deps.Bookings.CancelBooking(r.Context(), strings.TrimSpace(body.BookingID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

type weeklyTemplateBody struct {
	BusinessID string                         `json:"business_id"`
	Days       []*models.AvailabilityTemplate `json:"days"`
}

func (s *HTTPServer) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	businessID, err := requiredParam(r, "business_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	days, err := s.deps.Schedule.WeeklyTemplate(r.Context(), businessID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, weeklyTemplateBody{BusinessID: businessID, Days: days})
}

func (s *HTTPServer) handlePutAvailability(w http.ResponseWriter, r *http.Request) {
	businessID, err := requiredParam(r, "business_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var body weeklyTemplateBody
	if err := decodeBody(w, r, &body); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if body.BusinessID != "" && body.BusinessID != businessID {
		writeDomainError(w, r, fmt.Errorf("%w: business_id mismatch", domain.ErrValidation))
		return
	}

	if err := s.deps.Schedule.SetWeeklyTemplate(r.Context(), businessID, body.Days); err != nil {
		writeDomainError(w, r, err)
		return
	}

	days, err := s.deps.Schedule.WeeklyTemplate(r.Context(), businessID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, weeklyTemplateBody{BusinessID: businessID, Days: days})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	businessID, err := requiredParam(r, "business_id")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	services, err := s.deps.Schedule.ListServices(r.Context(), businessID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if services == nil {
		services = []*models.Service{}
	}
	writeData(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleSaveService(w http.ResponseWriter, r *http.Request) {
	var svc models.Service
	if err := decodeBody(w, r, &svc); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := s.deps.Schedule.SaveService(r.Context(), &svc); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, &svc)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Readiness))
	ready := true
	for _, c := range s.deps.Readiness {
		if err := c.Check(ctx); err != nil {
			ready = false
			checks[c.Name] = err.Error()
			continue
		}
		checks[c.Name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Data:  map[string]any{"checks": checks},
			Error: &errorBody{Code: domain.CodeTransient, Message: "not ready"},
		})
		return
	}
	writeData(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}
