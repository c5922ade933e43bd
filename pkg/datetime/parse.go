// Package datetime provides date and time utility functions.
package datetime

import (
	"time"

	"github.com/iwvelando/microloan/pkg/constants"
)

const (
	// DateLayout is the calendar date format used throughout the application.
	DateLayout = constants.DateLayout

	hoursPerDay = 24
)

// ParseDate parses a DateLayout string into a UTC midnight time.Time.
func ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, time.UTC)
}

// MustParseDate parses a date string and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseDate(date string) time.Time {
	t, err := ParseDate(date)
	if err != nil {
		panic(err)
	}
	return t
}

// Truncate drops the clock part of t, keeping its calendar date in UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthsBetween returns the number of whole calendar months from start to end.
// A month only counts once the day of month of start has been reached again.
// The result is negative when end is before start.
func MonthsBetween(start, end time.Time) int {
	start, end = Truncate(start), Truncate(end)
	if end.Before(start) {
		return -MonthsBetween(end, start)
	}
	months := (end.Year()-start.Year())*constants.MonthsPerYear + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	return months
}

// DaysBetween returns the number of calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(Truncate(end).Sub(Truncate(start)).Hours() / hoursPerDay)
}
