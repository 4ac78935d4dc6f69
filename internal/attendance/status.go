// Package attendance derives per-day attendance status and implements the local
// attendance and user record store.
package attendance

import (
	"time"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

// Check-ins strictly after this time of day are late.
const (
	LateCutoffHour   = 9
	LateCutoffMinute = 10
)

// ComputeStatus derives the status of the day dateKey from its punches. now fixes both
// "today" and the local time zone used for the cutoff. The result depends on nothing else.
func ComputeStatus(dateKey string, in, out *time.Time, now time.Time) schema.Status {
	loc := now.Location()

	if in == nil && out == nil {
		if dateKey == ToDateKey(now) {
			return schema.StatusIncomplete
		}
		date, err := ParseDateKey(dateKey, loc)
		if err == nil && date.Before(StartOfDay(now)) && IsWorkingDay(date) {
			return schema.StatusAbsent
		}
		return schema.StatusIncomplete
	}

	// Still at work, or an out punch without an in punch.
	if in == nil || out == nil {
		return schema.StatusIncomplete
	}

	local := in.In(loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), LateCutoffHour, LateCutoffMinute, 0, 0, loc)
	if local.After(cutoff) {
		return schema.StatusLate
	}
	return schema.StatusOK
}
