/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package matching

import (
	"sort"
	"time"
)

// PatternGroup labels which half of the week a driver usually works.
type PatternGroup string

const (
	PatternSunWed PatternGroup = "sunWed"
	PatternWedSat PatternGroup = "wedSat"
	PatternMixed  PatternGroup = "mixed"
)

// Inference thresholds.
const (
	// InferredDayShare is the share of assignments a weekday needs to count
	// as an inferred preference.
	InferredDayShare = 0.25
	// InferredTimesLimit caps inferred start times.
	InferredTimesLimit = 3
	// PatternShare is the weighted share of work a half-week needs before
	// it names the pattern group.
	PatternShare = 0.65
)

// inferDays returns weekdays holding at least InferredDayShare of the
// widest window, busiest first. When none reaches the share the three
// busiest weekdays are used.
func inferDays(h *History) []time.Weekday {
	out := []time.Weekday{}
	if h == nil || h.TotalHistory == 0 {
		return out
	}
	days := make([]time.Weekday, 0, len(h.WeekdayCounts))
	for wd, n := range h.WeekdayCounts {
		if n > 0 {
			days = append(days, wd)
		}
	}
	sort.Slice(days, func(i, j int) bool {
		ci, cj := h.WeekdayCounts[days[i]], h.WeekdayCounts[days[j]]
		if ci != cj {
			return ci > cj
		}
		return days[i] < days[j]
	})

	threshold := float64(h.TotalHistory) * InferredDayShare
	for _, wd := range days {
		if float64(h.WeekdayCounts[wd]) >= threshold {
			out = append(out, wd)
		}
	}
	if len(out) == 0 {
		out = append(out, days[:min(3, len(days))]...)
	}
	return out
}

// inferTimes returns the most worked canonical start times in the widest
// window, ties by earlier time.
func inferTimes(h *History) []string {
	out := []string{}
	if h == nil {
		return out
	}
	counts := make(map[string]int)
	for k, n := range h.Windows[WidestWindow] {
		counts[k.Time] += n
	}
	for t := range counts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if len(out) > InferredTimesLimit {
		out = out[:InferredTimesLimit]
	}
	return out
}

// patternGroupFor weighs Sunday to Tuesday against Thursday to Saturday,
// with Wednesday split between both halves. Drivers below
// EstablishedMinHistory get no group.
func patternGroupFor(h *History) PatternGroup {
	if h == nil || h.TotalHistory < EstablishedMinHistory {
		return ""
	}
	c := func(wd time.Weekday) float64 { return float64(h.WeekdayCounts[wd]) }
	early := c(time.Sunday) + c(time.Monday) + c(time.Tuesday) + c(time.Wednesday)*0.5
	late := c(time.Wednesday)*0.5 + c(time.Thursday) + c(time.Friday) + c(time.Saturday)
	total := early + late
	switch {
	case total == 0:
		return PatternMixed
	case early/total >= PatternShare:
		return PatternSunWed
	case late/total >= PatternShare:
		return PatternWedSat
	default:
		return PatternMixed
	}
}
