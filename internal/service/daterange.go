package service

import (
	"fmt"
	"time"
)

// ParseDateRange turns inclusive YYYY-MM-DD days into a [from, to) window.
// An empty from means the first day of now's month; an empty to means today.
func ParseDateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var err error
	if from != "" {
		if start, err = time.Parse(time.DateOnly, from); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid de %q, expected YYYY-MM-DD: %w", from, ErrValidation)
		}
	}
	if to != "" {
		if last, err = time.Parse(time.DateOnly, to); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid ate %q, expected YYYY-MM-DD: %w", to, ErrValidation)
		}
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("de must not be after ate: %w", ErrValidation)
	}
	return start, last.AddDate(0, 0, 1), nil
}

// ReservationsReportName names the report of [from, to) after its first and
// last day.
func ReservationsReportName(from, to time.Time) string {
	return fmt.Sprintf("reservas_%s_a_%s.xlsx", from.Format(time.DateOnly), to.AddDate(0, 0, -1).Format(time.DateOnly))
}
