package scheduling

import (
	"fmt"
	"strconv"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

// Clock is a wall-clock time of day parsed from an "HH:mm" template value.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a strict two-digit "HH:mm" value. "24:00" is accepted as end of day.
func ParseClock(value string) (Clock, error) {
	if len(value) != 5 || value[2] != ':' {
		return Clock{}, fmt.Errorf("%w: time %q is not in HH:mm format", domain.ErrConfiguration, value)
	}

	hour, errH := parseTwoDigits(value[:2])
	minute, errM := parseTwoDigits(value[3:])
	if errH != nil || errM != nil {
		return Clock{}, fmt.Errorf("%w: time %q is not in HH:mm format", domain.ErrConfiguration, value)
	}
	if minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return Clock{}, fmt.Errorf("%w: time %q is out of range", domain.ErrConfiguration, value)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func parseTwoDigits(s string) (int, error) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// On anchors the clock to the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// FormatSlot renders a slot start as "HH:mm".
func FormatSlot(t time.Time) string {
	return t.Format(models.ClockLayout)
}

// DayBounds returns the half-open calendar day [00:00, next 00:00) containing date.
func DayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 1)
}

// LockKey is the advisory lock bucket of a business for the calendar day of t.
func LockKey(businessID string, t time.Time) string {
	return businessID + ":" + t.Format(models.DateLayout)
}
