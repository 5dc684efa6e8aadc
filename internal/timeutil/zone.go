package timeutil

import (
	"fmt"
	"time"
)

// Location is the zone used to truncate shipment dates to a day.
// Defaults to UTC; SetLocation switches it at startup.
var Location = time.UTC

// SetLocation loads a named zone such as "Asia/Kolkata".
func SetLocation(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load location %q: %w", name, err)
	}
	Location = loc
	return nil
}

// Now returns the current time in the configured zone
func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfDay returns 00:00:00 of t's day in the configured zone
func StartOfDay(t time.Time) time.Time {
	l := t.In(Location)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Location)
}

// NextDay returns the start of the day after t
func NextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// ParseDay accepts a plain date or any RFC3339 timestamp.
func ParseDay(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, value, Location); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
