package domain

import (
	"context"
	"time"

	"slotbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Repository is the persistence collaborator of the booking core.
// Lookups of a missing row return an error wrapping ErrNotFound.
type Repository interface {
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	SaveBusiness(ctx context.Context, business *models.Business) error

	GetService(ctx context.Context, id string) (*models.Service, error)
	SaveService(ctx context.Context, service *models.Service) error
	ListServices(ctx context.Context, businessID string) ([]*models.Service, error)

	GetAvailabilityTemplate(ctx context.Context, businessID string, day models.Weekday) (*models.AvailabilityTemplate, error)
	ListAvailabilityTemplates(ctx context.Context, businessID string) ([]*models.AvailabilityTemplate, error)
	ReplaceAvailabilityTemplates(ctx context.Context, businessID string, templates []*models.AvailabilityTemplate) error

	// ListActiveBookings returns non-cancelled bookings whose interval overlaps [from, to), ordered by start.
	ListActiveBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error)
	// ListBookings returns bookings of any status starting in [from, to), ordered by start.
	ListBookings(ctx context.Context, businessID string, from, to time.Time) ([]*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// CreateBookingWithLock re-checks overlap and inserts in one atomic unit.
	// Overlap yields ErrCollision, store contention ErrTransient.
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	CancelBooking(ctx context.Context, id string, at time.Time) (*models.Booking, error)

	Ping(ctx context.Context) error
	Close() error
}

// Lease is a held advisory lock.
type Lease interface {
	Release(ctx context.Context) error
}

// DayLocker serializes writers of one (business, day) bucket.
// Acquire blocks until the lock is taken or ctx is done; failure wraps ErrTransient.
type DayLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID string, booking *models.Booking, status string) error
}
