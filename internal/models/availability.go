package models

import (
	"fmt"
	"time"
)

// Weekday is the day-of-week ordinal used by availability templates.
// Sunday is 0, matching time.Weekday.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// WeekdayOf returns the template ordinal for the calendar day of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

// AvailabilityTemplate is the open window of a business for one day of the week.
type AvailabilityTemplate struct {
	BusinessID string    `yaml:"business_id" json:"business_id"`
	DayOfWeek  Weekday   `yaml:"day_of_week" json:"day_of_week"`
	StartTime  string    `yaml:"start_time" json:"start_time"`
	EndTime    string    `yaml:"end_time" json:"end_time"`
	IsActive   bool      `yaml:"is_active" json:"is_active"`
	UpdatedAt  time.Time `yaml:"-" json:"updated_at"`
}
