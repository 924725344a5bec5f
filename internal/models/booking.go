package models

import "time"

type Booking struct {
	ID              string     `json:"id"`
	BusinessID      string     `json:"business_id"`
	ServiceID       string     `json:"service_id"`
	ServiceName     string     `json:"service_name,omitempty"`
	CustomerName    string     `json:"customer_name"`
	CustomerEmail   string     `json:"customer_email"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"` // snapshot of the service duration at creation
	Status          string     `json:"status"`           // confirmed, cancelled
	Notes           string     `json:"notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the booking still occupies its interval.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}
