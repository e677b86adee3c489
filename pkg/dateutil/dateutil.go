// Package dateutil provides calendar-day helpers for the daily puzzle.
// A "day" is a time.Time at midnight UTC; the zone only matters when
// deciding which puzzle day "now" belongs to.
package dateutil

import (
	"fmt"
	"time"
)

// Layout is the ISO day format used on the wire and in storage.
const Layout = time.DateOnly

// Day truncates t to its calendar day, keeping the wall-clock date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current puzzle day as seen in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Day(now.In(loc))
}

// Parse parses a YYYY-MM-DD day.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// Format renders a day as YYYY-MM-DD.
func Format(day time.Time) string {
	return day.Format(Layout)
}

// AddDays shifts a day by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// Range returns every day in [start, end], inclusive and ascending.
// It returns nil when end is before start.
func Range(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	out := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// DaysBetween counts whole days from start to end (negative if end is earlier).
func DaysBetween(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours() / 24)
}

// IsSaturday reports whether day is a Saturday (the oversized puzzle).
func IsSaturday(day time.Time) bool {
	return day.Weekday() == time.Saturday
}
