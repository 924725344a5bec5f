package scheduling

import (
	"fmt"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

// Window is the resolved opening of a business on one calendar day.
type Window struct {
	IsOpen bool      `json:"is_open"`
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time"`
}

func (w Window) Interval() Interval {
	return Interval{Start: w.Start, End: w.End}
}

// ResolveWindow maps date to the opening described by tpl.
// A nil or inactive template means the business is closed that day.
// The time-of-day of date is ignored; the window is anchored to its calendar day in date.Location().
func ResolveWindow(tpl *models.AvailabilityTemplate, date time.Time) (Window, error) {
	if tpl == nil || !tpl.IsActive {
		return Window{IsOpen: false}, nil
	}
	if want := models.WeekdayOf(date); tpl.DayOfWeek != want {
		return Window{}, fmt.Errorf("%w: template for %s applied to %s", domain.ErrConfiguration, tpl.DayOfWeek, want)
	}

	start, end, err := ParseTemplate(tpl)
	if err != nil {
		return Window{}, err
	}

	return Window{IsOpen: true, Start: start.On(date), End: end.On(date)}, nil
}

// ParseTemplate validates the clock values of tpl.
func ParseTemplate(tpl *models.AvailabilityTemplate) (Clock, Clock, error) {
	start, err := ParseClock(tpl.StartTime)
	if err != nil {
		return Clock{}, Clock{}, fmt.Errorf("%s start: %w", tpl.DayOfWeek, err)
	}
	end, err := ParseClock(tpl.EndTime)
	if err != nil {
		return Clock{}, Clock{}, fmt.Errorf("%s end: %w", tpl.DayOfWeek, err)
	}
	if end.Minutes() <= start.Minutes() {
		return Clock{}, Clock{}, fmt.Errorf("%w: %s window %s-%s ends before it starts",
			domain.ErrConfiguration, tpl.DayOfWeek, start, end)
	}
	return start, end, nil
}
