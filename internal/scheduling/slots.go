package scheduling

import (
	"fmt"
	"time"

	"slotbook/internal/domain"
)

// GenerateSlots enumerates candidate starts across window at the given step and keeps those whose
// [start, start+duration) does not overlap any busy interval.
//
// A slot ending exactly at the window end is valid. Starts before notBefore are dropped
// unless notBefore is zero. The result is strictly ascending. A closed window yields no slots.
func GenerateSlots(window Window, duration, step time.Duration, busy []Interval, notBefore time.Time) ([]time.Time, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: service duration must be positive, got %s", domain.ErrConfiguration, duration)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: slot step must be positive, got %s", domain.ErrConfiguration, step)
	}

	slots := []time.Time{}
	if !window.IsOpen || !window.End.After(window.Start) {
		return slots, nil
	}

	for cursor := window.Start; !cursor.Add(duration).After(window.End); cursor = cursor.Add(step) {
		if !notBefore.IsZero() && cursor.Before(notBefore) {
			continue
		}
		if OverlapsAny(Interval{Start: cursor, End: cursor.Add(duration)}, busy) {
			continue
		}
		slots = append(slots, cursor)
	}

	return slots, nil
}

// FormatSlots renders slots as "HH:mm" strings, preserving order.
func FormatSlots(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, FormatSlot(s))
	}
	return out
}
