package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/models"
	"slotbook/internal/repository"
	"slotbook/internal/retry"
	"slotbook/internal/scheduling"

	"github.com/rs/zerolog"
)

// Options tune slot listing and the write path.
type Options struct {
	DefaultStepMinutes int
	HidePastSlots      bool
	LockTTL            time.Duration
	LockWait           time.Duration
	Retry              retry.Policy
	// Location anchors calendar days and template clocks.
	Location *time.Location
}

func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		DefaultStepMinutes: cfg.Booking.DefaultStepMinutes,
		HidePastSlots:      cfg.Booking.HidesPastSlots(),
		LockTTL:            cfg.Booking.LockTTL,
		LockWait:           cfg.Booking.LockWait,
		Retry:              retry.FromConfig(cfg.Booking.Retry),
		Location:           loc,
	}, nil
}

// SlotQuery asks for the bookable starts of one service on one calendar day.
type SlotQuery struct {
	// BusinessID is optional; when set it must own the service.
	BusinessID  string
	ServiceID   string
	Date        time.Time
	StepMinutes int
}

type CreateBookingInput struct {
	ServiceID     string    `json:"service_id"`
	StartTime     time.Time `json:"start_time"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Notes         string    `json:"notes"`
}

type BookingService struct {
	repo         domain.Repository
	locker       domain.DayLocker
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	opts         Options
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewBookingService(repo domain.Repository, locker domain.DayLocker, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, opts Options, logger *zerolog.Logger) *BookingService {
	if opts.DefaultStepMinutes <= 0 {
		opts.DefaultStepMinutes = models.DefaultStepMinutes
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.LockWait <= 0 || opts.LockWait > opts.LockTTL {
		opts.LockWait = opts.LockTTL
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &BookingService{
		repo:         repo,
		locker:       locker,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

// ResolveWindow returns the opening of businessID on the calendar day of date.
// A missing or inactive template row means closed, which is not an error.
func (s *BookingService) ResolveWindow(ctx context.Context, businessID string, date time.Time) (scheduling.Window, error) {
	date = date.In(s.opts.Location)

	tpl, err := s.repo.GetAvailabilityTemplate(ctx, businessID, models.WeekdayOf(date))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return scheduling.Window{}, err
		}
		tpl = nil
	}

	window, err := scheduling.ResolveWindow(tpl, date)
	if err != nil {
		return scheduling.Window{}, fmt.Errorf("business %s: %w", businessID, err)
	}
	return window, nil
}

// GenerateSlots lists the "HH:mm" starts a customer may book. The list is a snapshot and can go
// stale immediately; CreateBooking re-validates.
func (s *BookingService) GenerateSlots(ctx context.Context, q SlotQuery) ([]string, error) {
	slots, err := s.availableSlots(ctx, q)
	metrics.IncSlotQuery(domain.Code(err))
	if err != nil {
		return nil, err
	}
	return scheduling.FormatSlots(slots), nil
}

func (s *BookingService) availableSlots(ctx context.Context, q SlotQuery) ([]time.Time, error) {
	if q.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	step := q.StepMinutes
	if step <= 0 {
		step = s.opts.DefaultStepMinutes
	}
	if step > models.MaxSlotsPerDay {
		return nil, fmt.Errorf("%w: step_minutes must not exceed %d", domain.ErrValidation, models.MaxSlotsPerDay)
	}

	svc, err := s.bookableService(ctx, q.ServiceID, q.BusinessID)
	if err != nil {
		return nil, err
	}

	date := q.Date.In(s.opts.Location)
	window, err := s.ResolveWindow(ctx, svc.BusinessID, date)
	if err != nil {
		return nil, err
	}
	if !window.IsOpen {
		return []time.Time{}, nil
	}

	dayStart, dayEnd := scheduling.DayBounds(date)
	existing, err := s.repo.ListActiveBookings(ctx, svc.BusinessID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var notBefore time.Time
	if s.opts.HidePastSlots {
		notBefore = s.now()
	}

	return scheduling.GenerateSlots(
		window,
		time.Duration(svc.DurationMinutes)*time.Minute,
		time.Duration(step)*time.Minute,
		scheduling.BusyIntervals(existing),
		notBefore,
	)
}

// CreateBooking reserves [StartTime, StartTime+duration) for the customer.
// Overlap with an active booking yields domain.ErrCollision and is never retried.
// Lock or store contention is retried with backoff and surfaces as domain.ErrTransient.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	booking, err := s.createBooking(ctx, in)
	metrics.IncBooking(domain.Code(err))
	return booking, err
}

func (s *BookingService) createBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if err := validateBookingInput(&in); err != nil {
		return nil, err
	}

	svc, err := s.bookableService(ctx, in.ServiceID, "")
	if err != nil {
		return nil, err
	}

	// Хранилище держит минутную сетку, секунды отбрасываются
	start := in.StartTime.In(s.opts.Location).Truncate(time.Minute)
	duration := time.Duration(svc.DurationMinutes) * time.Minute
	candidate := scheduling.Interval{Start: start, End: start.Add(duration)}

	if s.opts.HidePastSlots && start.Before(s.now()) {
		return nil, fmt.Errorf("%w: start time %s is in the past", domain.ErrValidation, start.Format(time.RFC3339))
	}

	window, err := s.ResolveWindow(ctx, svc.BusinessID, start)
	if err != nil {
		return nil, err
	}
	if !window.IsOpen || !candidate.Within(window.Interval()) {
		return nil, fmt.Errorf("%w: %s-%s is outside availability", domain.ErrValidation,
			scheduling.FormatSlot(candidate.Start), scheduling.FormatSlot(candidate.End))
	}

	booking := &models.Booking{
		BusinessID:      svc.BusinessID,
		ServiceID:       svc.ID,
		ServiceName:     svc.Name,
		CustomerName:    in.CustomerName,
		CustomerEmail:   in.CustomerEmail,
		StartTime:       candidate.Start,
		EndTime:         candidate.End,
		DurationMinutes: svc.DurationMinutes,
		Status:          models.StatusConfirmed,
		Notes:           in.Notes,
	}

	err = retry.Do(ctx, s.opts.Retry, domain.IsRetryable, func(attempt int) error {
		if attempt > 0 {
			s.logger.Warn().Int("attempt", attempt).Str("business_id", booking.BusinessID).
				Time("start", booking.StartTime).Msg("Retrying booking after transient error")
		}
		return s.reserve(ctx, booking)
	})
	if err != nil {
		if errors.Is(err, domain.ErrCollision) {
			s.logger.Info().Err(err).Str("business_id", booking.BusinessID).Time("start", booking.StartTime).Msg("Booking collision")
		}
		return nil, err
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("business_id", booking.BusinessID).
		Time("start", booking.StartTime).Time("end", booking.EndTime).Msg("Booking created")

	s.publishEvent(ctx, models.EventBookingCreated, booking)
	s.enqueueSync(ctx, booking, models.SyncTaskUpsert)
	return booking, nil
}

// reserve holds the business day lock around the store's check-then-insert.
func (s *BookingService) reserve(ctx context.Context, booking *models.Booking) error {
	if s.locker == nil {
		return s.repo.CreateBookingWithLock(ctx, booking)
	}

	key := scheduling.LockKey(booking.BusinessID, booking.StartTime)
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.LockWait)
	started := time.Now()
	lease, err := s.locker.Acquire(waitCtx, key, s.opts.LockTTL)
	cancel()
	metrics.ObserveLockWait(time.Since(started))
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			ev := s.logger.Error()
			if errors.Is(err, repository.ErrLockLost) {
				ev = s.logger.Warn()
			}
			ev.Err(err).Str("lock", key).Msg("Failed to release day lock")
		}
	}()

	return s.repo.CreateBookingWithLock(ctx, booking)
}

// CancelBooking moves a booking to cancelled. An already cancelled booking is returned as is.
func (s *BookingService) CancelBooking(ctx context.Context, id string) (*models.Booking, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}

	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive() {
		return current, nil
	}

	booking, err := s.repo.CancelBooking(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("booking_id", booking.ID).Str("business_id", booking.BusinessID).Msg("Booking cancelled")
	s.publishEvent(ctx, models.EventBookingCancelled, booking)
	s.enqueueSync(ctx, booking, models.SyncTaskUpdateStatus)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// ListBookings returns bookings of any status starting in [from, to).
func (s *BookingService) ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error) {
	if businessID == "" {
		return nil, fmt.Errorf("%w: business_id is required", domain.ErrValidation)
	}
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, fmt.Errorf("%w: range must satisfy from < to", domain.ErrValidation)
	}
	return s.repo.ListBookings(ctx, businessID, from, to)
}

// bookableService loads an active service with a positive duration whose business is active.
func (s *BookingService) bookableService(ctx context.Context, serviceID, businessID string) (*models.Service, error) {
	if strings.TrimSpace(serviceID) == "" {
		return nil, fmt.Errorf("%w: service_id is required", domain.ErrValidation)
	}

	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Bookable() {
		return nil, fmt.Errorf("%w: service %s is not bookable", domain.ErrNotFound, serviceID)
	}
	if businessID != "" && svc.BusinessID != businessID {
		return nil, fmt.Errorf("%w: service %s does not belong to business %s", domain.ErrNotFound, serviceID, businessID)
	}

	business, err := s.repo.GetBusiness(ctx, svc.BusinessID)
	if err != nil {
		return nil, err
	}
	if !business.IsActive {
		return nil, fmt.Errorf("%w: business %s is not active", domain.ErrNotFound, business.ID)
	}
	return svc, nil
}

func validateBookingInput(in *CreateBookingInput) error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)

	if in.StartTime.IsZero() {
		return fmt.Errorf("%w: start_time is required", domain.ErrValidation)
	}
	if in.CustomerName == "" {
		return fmt.Errorf("%w: customer_name is required", domain.ErrValidation)
	}
	addr, err := mail.ParseAddress(in.CustomerEmail)
	if err != nil || addr.Address != in.CustomerEmail {
		return fmt.Errorf("%w: customer_email %q is invalid", domain.ErrValidation, in.CustomerEmail)
	}
	return nil
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.PublishJSON(ctx, eventType, events.NewBookingPayload(booking)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == models.SyncTaskUpdateStatus {
		status = booking.Status
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, booking, status); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
