package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

const localStartLayout = "2006-01-02T15:04"

// parseDate reads a YYYY-MM-DD calendar day at midnight in loc.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	d, err := time.ParseInLocation(models.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q; expected YYYY-MM-DD", domain.ErrValidation, raw)
	}
	return d, nil
}

// parseStartTime accepts RFC3339 or a local "YYYY-MM-DDTHH:mm" wall-clock time in loc.
func parseStartTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: start_time is required", domain.ErrValidation)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(localStartLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid start_time %q", domain.ErrValidation, raw)
	}
	return t, nil
}

func parseStep(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	step, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid step_minutes %q", domain.ErrValidation, raw)
	}
	return step, nil
}

// parsePeriod reads an inclusive [from, to] day range and returns it as half-open [from, to+1d).
// A missing to means the single day from.
func parsePeriod(rawFrom, rawTo string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := parseDate(rawFrom, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := from
	if strings.TrimSpace(rawTo) != "" {
		if to, err = parseDate(rawTo, loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must not be before from", domain.ErrValidation)
	}
	return from, to.AddDate(0, 0, 1), nil
}
