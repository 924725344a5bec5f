package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
)

const (
	// DefaultStepMinutes шаг сетки слотов по умолчанию
	DefaultStepMinutes = 30

	// ClockLayout формат времени в шаблоне доступности и в списке слотов
	ClockLayout = "15:04"

	// DateLayout формат календарного дня в запросах
	DateLayout = "2006-01-02"

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// MaxSlotsPerDay верхняя граница количества слотов за день при шаге в 1 минуту
	MaxSlotsPerDay = 24 * 60
)
