/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timewindow provides calendar arithmetic in the tenant's local time:
// Sunday-to-Saturday weeks, YYYY-MM-DD date keys, 24h clock strings and
// weekday names.
package timewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date key format.
const DateLayout = "2006-01-02"

// MinutesPerDay is used to wrap clock offsets.
const MinutesPerDay = 24 * 60

var (
	// ErrInvalidDate indicates a date string that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidClock indicates a time string outside 24-hour HH:MM.
	ErrInvalidClock = errors.New("invalid clock time")

	// ErrInvalidWeekday indicates an unrecognised weekday name.
	ErrInvalidWeekday = errors.New("invalid weekday")
)

// locOrUTC guards against a nil location.
func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// WeekStart returns Sunday 00:00 of the week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc)
}

// WeekBounds returns [start, end) for the week containing t.
func WeekBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := WeekStart(t, loc)
	y, m, d := start.Date()
	return start, time.Date(y, m, d+7, 0, 0, 0, 0, start.Location())
}

// InWeek reports whether ts falls within [weekStart, weekStart+7 days).
func InWeek(ts, weekStart time.Time) bool {
	y, m, d := weekStart.Date()
	end := time.Date(y, m, d+7, 0, 0, 0, 0, weekStart.Location())
	return !ts.Before(weekStart) && ts.Before(end)
}

// AddWeeks shifts a local midnight by n calendar weeks.
func AddWeeks(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+7*n, 0, 0, 0, 0, t.Location())
}

// ParseDate parses a YYYY-MM-DD key as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), locOrUTC(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DateKey formats the local calendar date of t.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(locOrUTC(loc)).Format(DateLayout)
}

// AddDays shifts a date key by n days.
func AddDays(key string, n int) (string, error) {
	t, err := ParseDate(key, time.UTC)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a, time.UTC)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// DateWeekday returns the weekday of a date key.
func DateWeekday(key string) (time.Weekday, error) {
	t, err := ParseDate(key, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// ParseClock parses a 24-hour "HH:MM" string into minutes after midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// FormatClock renders minutes after midnight as "HH:MM".
func FormatClock(minutes int) string {
	minutes = ((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Bump returns the signed minute offset from want to actual, wrapped so the
// result lies in (-720, 720].
func Bump(want, actual int) int {
	d := ((actual-want)%MinutesPerDay + MinutesPerDay) % MinutesPerDay
	if d > MinutesPerDay/2 {
		d -= MinutesPerDay
	}
	return d
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"tues":      time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"thur":      time.Thursday,
	"thurs":     time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday accepts full or abbreviated English weekday names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	if wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return wd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}
