// Package epoch provides conversions between wall-clock time and the
// minute-granularity timeline used by the flight graph. All flight times are
// stored as whole minutes since a fixed reference instant so that schedules
// loaded in different sessions compare consistently.
package epoch

import "time"

// Reference is the fixed epoch: midnight UTC, January 1, 2024.
var Reference = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Minutes is a point on the flight timeline, in whole minutes since Reference.
type Minutes = int64

// FromTime converts a wall-clock time to epoch minutes, truncating seconds.
func FromTime(t time.Time) Minutes {
	return int64(t.Sub(Reference) / time.Minute)
}

// ToTime converts epoch minutes back to a UTC wall-clock time.
func ToTime(m Minutes) time.Time {
	return Reference.Add(time.Duration(m) * time.Minute)
}

// DayMinute returns the minute-of-day component (0..1439) of m.
// Negative timeline values normalize into the same range.
func DayMinute(m Minutes) int {
	const day = 24 * 60
	d := m % day
	if d < 0 {
		d += day
	}
	return int(d)
}

// HourOfDay returns the hour-of-day component (0..23) of m.
func HourOfDay(m Minutes) int {
	return DayMinute(m) / 60
}

// DayIndex returns the whole days elapsed since Reference at m, flooring
// toward negative infinity.
func DayIndex(m Minutes) int64 {
	const day = 24 * 60
	d := m / day
	if m%day < 0 {
		d--
	}
	return d
}

// StartOfDay returns the epoch minute at midnight UTC on the given date.
func StartOfDay(t time.Time) Minutes {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return FromTime(day)
}
