/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timewindow

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWeekBoundsStartOnSunday(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"sunday midnight", time.Date(2025, 3, 2, 0, 0, 0, 0, loc), "2025-03-02"},
		{"wednesday afternoon", time.Date(2025, 3, 5, 15, 30, 0, 0, loc), "2025-03-02"},
		{"saturday last minute", time.Date(2025, 3, 8, 23, 59, 0, 0, loc), "2025-03-02"},
		{"utc instant already next local week", time.Date(2025, 3, 9, 5, 30, 0, 0, time.UTC), "2025-03-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := WeekBounds(tt.at, loc)
			if got := start.Format(DateLayout); got != tt.want {
				t.Fatalf("week start = %s, want %s", got, tt.want)
			}
			if start.Weekday() != time.Sunday || end.Weekday() != time.Sunday {
				t.Fatalf("bounds not on sunday: %v - %v", start, end)
			}
			if !InWeek(tt.at, start) {
				t.Fatalf("%v should be inside week starting %v", tt.at, start)
			}
		})
	}
}

func TestWeekBoundsAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// DST begins 2025-03-09; that week is 167 hours long.
	start, end := WeekBounds(time.Date(2025, 3, 12, 12, 0, 0, 0, loc), loc)
	if end.Sub(start) != 167*time.Hour {
		t.Fatalf("week length = %v, want 167h", end.Sub(start))
	}
	if end.Hour() != 0 {
		t.Fatalf("week end should be local midnight, got %v", end)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"16:30", 990, false},
		{"23:59", 1439, false},
		{" 08:05 ", 485, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:30", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidClock) {
					t.Fatalf("expected ErrInvalidClock, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
			if FormatClock(got) != strings.TrimSpace(tt.in) {
				t.Fatalf("FormatClock(%d) = %q", got, FormatClock(got))
			}
		})
	}
}

func TestBumpWrapsAtMidnight(t *testing.T) {
	tests := []struct {
		name         string
		want, actual int
		expected     int
	}{
		{"same time", 990, 990, 0},
		{"one hour later", 990, 1050, 60},
		{"one hour earlier", 990, 930, -60},
		{"across midnight forward", 1410, 30, 60},
		{"across midnight backward", 30, 1410, -60},
		{"half a day", 0, 720, 720},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bump(tt.want, tt.actual); got != tt.expected {
				t.Fatalf("Bump(%d, %d) = %d, want %d", tt.want, tt.actual, got, tt.expected)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"Sunday", time.Sunday},
		{"mon", time.Monday},
		{"TUES", time.Tuesday},
		{" wednesday ", time.Wednesday},
		{"Thu", time.Thursday},
		{"friday", time.Friday},
		{"Sat", time.Saturday},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseWeekday(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseWeekday("Funday"); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}
}

func TestDateArithmetic(t *testing.T) {
	next, err := AddDays("2025-02-28", 1)
	if err != nil {
		t.Fatalf("add days: %v", err)
	}
	if next != "2025-03-01" {
		t.Fatalf("AddDays = %s, want 2025-03-01", next)
	}

	n, err := DaysBetween("2025-03-01", "2025-03-08")
	if err != nil {
		t.Fatalf("days between: %v", err)
	}
	if n != 7 {
		t.Fatalf("DaysBetween = %d, want 7", n)
	}

	wd, err := DateWeekday("2025-03-02")
	if err != nil {
		t.Fatalf("weekday: %v", err)
	}
	if wd != time.Sunday {
		t.Fatalf("DateWeekday = %v, want Sunday", wd)
	}

	if _, err := AddDays("03/02/2025", 1); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}
