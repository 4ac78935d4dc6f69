package attendance

import (
	"time"
)

// Key layouts.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// ToDateKey formats t as YYYY-MM-DD in t's own location.
func ToDateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, loc)
}

// ParseMonthKey parses a YYYY-MM key as the first day of the month in loc.
func ParseMonthKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(MonthLayout, key, loc)
}

// IsWorkingDay reports whether t falls on Monday through Friday.
func IsWorkingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// AddDays moves t by n calendar days, keeping its location.
// The result is anchored at noon so DST transitions never shift the calendar date.
func AddDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, 12, 0, 0, 0, t.Location())
}

// MondayOf returns the Monday of the week containing t.
func MondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return AddDays(t, -offset)
}

// StartOfDay returns midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days of the month starting at first.
func DaysInMonth(first time.Time) int {
	return time.Date(first.Year(), first.Month()+1, 0, 12, 0, 0, 0, first.Location()).Day()
}
