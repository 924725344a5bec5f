package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Business is a tenant owning services, a weekly template and bookings.
type Business struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	TelegramChatID int64     `yaml:"telegram_chat_id" json:"telegram_chat_id"`
	IsActive       bool      `yaml:"is_active" json:"is_active"`
	CreatedAt      time.Time `yaml:"-" json:"created_at"`
	UpdatedAt      time.Time `yaml:"-" json:"updated_at"`
}

type Service struct {
	ID              string          `yaml:"id" json:"id"`
	BusinessID      string          `yaml:"business_id" json:"business_id"`
	Name            string          `yaml:"name" json:"name"`
	DurationMinutes int             `yaml:"duration_minutes" json:"duration_minutes"`
	Price           decimal.Decimal `yaml:"price" json:"price"`
	IsActive        bool            `yaml:"is_active" json:"is_active"`
	CreatedAt       time.Time       `yaml:"-" json:"created_at"`
	UpdatedAt       time.Time       `yaml:"-" json:"updated_at"`
}

// Bookable reports whether slots can be offered for the service.
func (s *Service) Bookable() bool {
	return s != nil && s.IsActive && s.DurationMinutes > 0
}
