// Package timeutil holds the calendar arithmetic shared by the schedule
// pipeline. All helpers are pure and operate in the location of their input.
package timeutil

import (
	"fmt"
	"time"
)

const (
	MinutesPerDay = 24 * 60

	dayKeyLayout = "2006-01-02"
)

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the exclusive end of t's day, i.e. the next midnight.
func EndOfDay(t time.Time) time.Time {
	return AddDays(StartOfDay(t), 1)
}

// AddDays moves t by n calendar days, keeping wall-clock time across DST.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// MinuteOfDay returns the wall-clock minute of t on day, clamped to
// [0, MinutesPerDay]. On DST transition days the result follows the clock
// face, not elapsed time.
func MinuteOfDay(day, t time.Time) int {
	start := StartOfDay(day)
	if !t.After(start) {
		return 0
	}
	if !t.Before(EndOfDay(day)) {
		return MinutesPerDay
	}
	t = t.In(start.Location())
	return t.Hour()*60 + t.Minute()
}

// RollingWindow returns n consecutive day starts, the first being start's day.
func RollingWindow(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	first := StartOfDay(start)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = AddDays(first, i)
	}
	return days
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func FormatDayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// ParseDayKey parses YYYY-MM-DD in loc.
func ParseDayKey(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(dayKeyLayout, s, loc)
}

// FormatClock renders minutes-from-midnight as HH:MM.
func FormatClock(min int) string {
	if min < 0 {
		min = 0
	}
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
