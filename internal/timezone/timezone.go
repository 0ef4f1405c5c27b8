// Package timezone resolves the German (EU) UTC offset for a civil instant.
//
// The rule is fixed: summer time runs from the last Sunday of March 01:00 UTC
// to the last Sunday of October 01:00 UTC. Historical rule changes are not
// modelled.
package timezone

import (
	"time"

	"github.com/getverbrauch/consumption-export/internal/calendar"
)

const (
	// SummerOffset is CEST.
	SummerOffset = "+02:00"
	// WinterOffset is CET.
	WinterOffset = "+01:00"
)

// transitionHourUTC is the hour (UTC) at which both transitions happen.
const transitionHourUTC = 1

// lastSunday finds the day of the last Sunday in the given month.
func lastSunday(year int, month time.Month) int {
	lastDay := calendar.DaysInMonth(year, month)
	weekday := time.Date(year, month, lastDay, 0, 0, 0, 0, time.UTC).Weekday()
	return lastDay - int(weekday-time.Sunday)
}

// SummerWindow returns the UTC instants at which summer time starts and ends in year.
func SummerWindow(year int) (start, end time.Time) {
	start = time.Date(year, time.March, lastSunday(year, time.March), transitionHourUTC, 0, 0, 0, time.UTC)
	end = time.Date(year, time.October, lastSunday(year, time.October), transitionHourUTC, 0, 0, 0, time.UTC)
	return start, end
}

// civilAsUTC reinterprets the wall clock of t as a UTC instant.
func civilAsUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// IsSummerTime reports whether the civil instant falls inside the summer window.
// The wall clock of t is compared as UTC; its location is ignored.
func IsSummerTime(t time.Time) bool {
	c := civilAsUTC(t)
	start, end := SummerWindow(c.Year())
	return !c.Before(start) && c.Before(end)
}

// OffsetFor returns SummerOffset or WinterOffset for the civil instant.
func OffsetFor(t time.Time) string {
	if IsSummerTime(t) {
		return SummerOffset
	}
	return WinterOffset
}

// Location returns a fixed zone carrying the offset that applies to t.
func Location(t time.Time) *time.Location {
	if IsSummerTime(t) {
		return time.FixedZone("CEST", 2*60*60)
	}
	return time.FixedZone("CET", 1*60*60)
}
