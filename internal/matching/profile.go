/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// Category grades how much scheduling data a driver has.
type Category string

const (
	// CategoryEstablished drivers have enough history to infer patterns.
	CategoryEstablished Category = "established"
	// CategoryNew drivers have a little history or stated preferences.
	CategoryNew Category = "new"
	// CategoryUnknown drivers are emergency fills only.
	CategoryUnknown Category = "unknown"
)

// History thresholds for categories.
const (
	EstablishedMinHistory = 8
	NewMinHistory         = 2
)

// Profile is a driver's parsed preferences plus data-sufficiency findings.
// Malformed preference strings are reported, never fatal.
type Profile struct {
	DriverID       string         `json:"driver_id"`
	Category       Category       `json:"category"`
	TotalHistory   int            `json:"total_history"`
	PreferredDays  []time.Weekday `json:"preferred_days"`
	PreferredTimes []string       `json:"preferred_times"`
	TopSlots       []string       `json:"top_slots,omitempty"`
	MinDays        int            `json:"min_days,omitempty"`
	MaxDays        int            `json:"max_days,omitempty"`
	InferredDays   []time.Weekday `json:"inferred_days"`
	InferredTimes  []string       `json:"inferred_times"`
	PatternGroup   PatternGroup   `json:"pattern_group,omitempty"`
	FormatErrors   []string       `json:"format_errors"`
	Warnings       []string       `json:"warnings"`
}

// HasPreferences reports whether at least one day or time parsed cleanly.
func (p Profile) HasPreferences() bool {
	return len(p.PreferredDays) > 0 || len(p.PreferredTimes) > 0
}

// PrefersDay reports whether weekday is one of the preferred days.
func (p Profile) PrefersDay(weekday time.Weekday) bool {
	for _, d := range p.PreferredDays {
		if d == weekday {
			return true
		}
	}
	return false
}

// ClassifyDriver parses the driver's preferences and grades the driver's
// data maturity against history, which may be nil.
func ClassifyDriver(driver models.Driver, history *History) Profile {
	p := Profile{
		DriverID:       driver.ID,
		PreferredDays:  []time.Weekday{},
		PreferredTimes: []string{},
		FormatErrors:   []string{},
		Warnings:       []string{},
	}
	if history != nil {
		p.TotalHistory = history.TotalHistory
		for _, k := range topSlots(history.Windows[WidestWindow], 3) {
			p.TopSlots = append(p.TopSlots, k.String())
		}
	}
	p.InferredDays = inferDays(history)
	p.InferredTimes = inferTimes(history)
	p.PatternGroup = patternGroupFor(history)
	if driver.Preferences != nil {
		p.checkDayBounds(driver.Preferences.MinDays, driver.Preferences.MaxDays)
	}

	stated := !driver.Preferences.IsEmpty()
	if stated {
		seenDay := make(map[time.Weekday]bool)
		for _, raw := range driver.Preferences.AllowedDays {
			wd, err := timewindow.ParseWeekday(raw)
			if err != nil {
				p.FormatErrors = append(p.FormatErrors, fmt.Sprintf("unrecognised weekday %q", raw))
				continue
			}
			if !seenDay[wd] {
				seenDay[wd] = true
				p.PreferredDays = append(p.PreferredDays, wd)
			}
		}
		sort.Slice(p.PreferredDays, func(i, j int) bool { return p.PreferredDays[i] < p.PreferredDays[j] })

		seenTime := make(map[int]bool)
		for _, raw := range driver.Preferences.PreferredTimes {
			m, err := timewindow.ParseClock(raw)
			if err != nil {
				p.FormatErrors = append(p.FormatErrors, fmt.Sprintf("time %q is not 24-hour HH:MM", raw))
				continue
			}
			if !seenTime[m] {
				seenTime[m] = true
				p.PreferredTimes = append(p.PreferredTimes, timewindow.FormatClock(m))
			}
		}
	}

	switch {
	case p.TotalHistory >= EstablishedMinHistory:
		p.Category = CategoryEstablished
	case p.TotalHistory >= NewMinHistory || p.HasPreferences():
		p.Category = CategoryNew
	default:
		p.Category = CategoryUnknown
	}

	if !stated && p.TotalHistory > 0 {
		p.Warnings = append(p.Warnings, "no stated preferences; matching relies on history only")
	}
	if stated && p.TotalHistory == 0 {
		p.Warnings = append(p.Warnings, "stated preferences but no assignment history yet")
	}
	if stated && !p.HasPreferences() {
		p.Warnings = append(p.Warnings, "no stated preference could be parsed")
	}
	return p
}

// checkDayBounds keeps min and max days per week when they are in 0..7 and
// min does not exceed max. Zero means unset.
func (p *Profile) checkDayBounds(minDays, maxDays int) {
	valid := true
	if minDays < 0 || minDays > 7 {
		p.FormatErrors = append(p.FormatErrors, fmt.Sprintf("min_days %d is outside 0..7", minDays))
		valid = false
	}
	if maxDays < 0 || maxDays > 7 {
		p.FormatErrors = append(p.FormatErrors, fmt.Sprintf("max_days %d is outside 0..7", maxDays))
		valid = false
	}
	if valid && maxDays > 0 && minDays > maxDays {
		p.FormatErrors = append(p.FormatErrors, fmt.Sprintf("min_days %d exceeds max_days %d", minDays, maxDays))
		valid = false
	}
	if valid {
		p.MinDays, p.MaxDays = minDays, maxDays
	}
}
