/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package compliance decides whether a driver may legally take a block under
// the fleet's duty-hour rules.
package compliance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// Duty-hour limits.
const (
	MinRestHours       = 10.0
	MaxConsecutiveDays = 6
	RestartHours       = 34.0
)

// Metric keys reported in ComplianceResult.Metrics.
const (
	MetricRestHours             = "rest_hours"
	MetricConsecutiveDays       = "consecutive_days"
	MetricWeekDays              = "week_days"
	MetricWeekHours             = "week_hours"
	MetricUtilization           = "utilization"
	MetricRestartHoursRemaining = "restart_hours_remaining"
)

// ErrInvalidInput marks a snapshot the calculator cannot reason about, such
// as a block without timestamps or an assignment without its block.
var ErrInvalidInput = errors.New("invalid compliance input")

// Calculator evaluates duty-hour compliance. It holds no mutable state and
// may be shared across goroutines.
type Calculator struct {
	loc *time.Location
}

// NewCalculator creates a calculator whose calendar weeks follow loc.
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc}
}

// Location returns the tenant calendar used for week boundaries.
func (c *Calculator) Location() *time.Location {
	return c.loc
}

type worked struct {
	assignmentID string
	block        models.Block
}

// ValidateAssignment checks whether driver may take block given the driver's
// assignment history and protected rules.
//
// history may contain inactive assignments, other drivers' assignments and an
// assignment on block itself; all three are ignored. Every remaining
// assignment must carry its Block. rules may include other drivers' rules;
// only the driver's own restrictions and exclusive slot claims held by others
// are applied.
func (c *Calculator) ValidateAssignment(driver models.Driver, block models.Block, history []models.Assignment, rules []models.ProtectedDriverRule) (models.ComplianceResult, error) {
	if err := checkBlock(block); err != nil {
		return models.ComplianceResult{}, err
	}

	prior, err := c.collect(driver.ID, block.ID, history)
	if err != nil {
		return models.ComplianceResult{}, err
	}

	e := &evaluation{
		result: models.ComplianceResult{
			Status:   models.ValidationValid,
			Metrics:  make(map[string]float64),
			Messages: []string{},
			Findings: []models.ComplianceFinding{},
		},
	}

	c.checkSameDate(e, block, prior)
	restShortfall := c.checkRest(e, block, prior)
	restartRemaining, err := c.checkConsecutive(e, block, prior)
	if err != nil {
		return models.ComplianceResult{}, err
	}
	c.recordWeek(e, block, prior)
	if err := c.checkProtected(e, driver, block, prior, rules); err != nil {
		return models.ComplianceResult{}, err
	}

	e.result.HoursRemaining = round1(max(restShortfall, restartRemaining))
	return e.result, nil
}

type evaluation struct {
	result models.ComplianceResult
}

func (e *evaluation) add(rule models.ComplianceRule, severity models.ValidationStatus, hard bool, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.result.Findings = append(e.result.Findings, models.ComplianceFinding{
		Rule:     rule,
		Severity: severity,
		Message:  msg,
		Hard:     hard,
	})
	e.result.Messages = append(e.result.Messages, msg)
	e.result.Status = e.result.Status.Worse(severity)
}

func checkBlock(b models.Block) error {
	if b.StartTimestamp.IsZero() || b.EndTimestamp.IsZero() {
		return fmt.Errorf("%w: block %s has no start or end", ErrInvalidInput, b.ID)
	}
	if b.EndTimestamp.Before(b.StartTimestamp) {
		return fmt.Errorf("%w: block %s ends before it starts", ErrInvalidInput, b.ID)
	}
	if _, err := timewindow.DateWeekday(b.ServiceDate); err != nil {
		return fmt.Errorf("%w: block %s service date: %v", ErrInvalidInput, b.ID, err)
	}
	return nil
}

// collect filters history down to the driver's other active blocks, sorted
// by start.
func (c *Calculator) collect(driverID, blockID string, history []models.Assignment) ([]worked, error) {
	out := make([]worked, 0, len(history))
	for _, a := range history {
		if !a.IsActive || a.BlockID == blockID {
			continue
		}
		if driverID != "" && a.DriverID != "" && a.DriverID != driverID {
			continue
		}
		if a.Block == nil {
			return nil, fmt.Errorf("%w: assignment %s has no block loaded", ErrInvalidInput, a.ID)
		}
		if err := checkBlock(*a.Block); err != nil {
			return nil, err
		}
		out = append(out, worked{assignmentID: a.ID, block: *a.Block})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].block.StartTimestamp.Before(out[j].block.StartTimestamp)
	})
	return out, nil
}

func (c *Calculator) checkSameDate(e *evaluation, block models.Block, prior []worked) {
	for _, w := range prior {
		if w.block.ServiceDate == block.ServiceDate {
			e.add(models.RuleOneBlockPerDate, models.ValidationViolation, false,
				"driver already holds block %s on %s", blockLabel(w.block), block.ServiceDate)
			return
		}
	}
}

// checkRest applies the 10-hour rest rule in both directions and returns the
// shortfall before block.
func (c *Calculator) checkRest(e *evaluation, block models.Block, prior []worked) float64 {
	var before, after *worked
	for i := range prior {
		w := &prior[i]
		if w.block.StartTimestamp.Before(block.StartTimestamp) {
			if before == nil || w.block.EndTimestamp.After(before.block.EndTimestamp) {
				before = w
			}
			continue
		}
		if after == nil {
			after = w
		}
	}

	var shortfall float64
	if before != nil {
		gap := block.StartTimestamp.Sub(before.block.EndTimestamp).Hours()
		e.result.Metrics[MetricRestHours] = round1(gap)
		switch {
		case gap < 0:
			shortfall = MinRestHours - gap
			e.add(models.RuleRest10Hour, models.ValidationViolation, false,
				"block overlaps %s by %.1fh; %.0fh rest required", blockLabel(before.block), -gap, MinRestHours)
		case gap < MinRestHours:
			shortfall = MinRestHours - gap
			e.add(models.RuleRest10Hour, models.ValidationViolation, false,
				"only %.1fh rest after %s; %.0fh required (%.1fh short)", gap, blockLabel(before.block), MinRestHours, shortfall)
		}
	}

	if after != nil {
		gap := after.block.StartTimestamp.Sub(block.EndTimestamp).Hours()
		if gap < MinRestHours {
			e.add(models.RuleRest10Hour, models.ValidationViolation, false,
				"only %.1fh rest before already assigned %s; %.0fh required", gap, blockLabel(after.block), MinRestHours)
		}
	}
	return shortfall
}

// run is a maximal span of consecutive worked dates.
type run struct {
	first, last string
	days        int
	lastEnd     time.Time
}

// runsBefore groups worked dates strictly before date into runs, most recent
// first.
func runsBefore(date string, prior []worked) ([]run, error) {
	ends := make(map[string]time.Time)
	for _, w := range prior {
		d := w.block.ServiceDate
		if d >= date {
			continue
		}
		if w.block.EndTimestamp.After(ends[d]) {
			ends[d] = w.block.EndTimestamp
		}
	}
	dates := make([]string, 0, len(ends))
	for d := range ends {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	var runs []run
	for _, d := range dates {
		if n := len(runs); n > 0 {
			gap, err := timewindow.DaysBetween(d, runs[n-1].first)
			if err != nil {
				return nil, err
			}
			if gap == 1 {
				runs[n-1].first = d
				runs[n-1].days++
				continue
			}
		}
		runs = append(runs, run{first: d, last: d, days: 1, lastEnd: ends[d]})
	}
	return runs, nil
}

// daysAfter counts worked dates immediately following date without a gap.
func daysAfter(date string, prior []worked) (int, error) {
	dates := make(map[string]bool)
	for _, w := range prior {
		if w.block.ServiceDate > date {
			dates[w.block.ServiceDate] = true
		}
	}
	n := 0
	d := date
	for {
		next, err := timewindow.AddDays(d, 1)
		if err != nil {
			return 0, err
		}
		if !dates[next] {
			return n, nil
		}
		n++
		d = next
	}
}

// checkConsecutive applies the consecutive-day and 34-hour restart rules and
// returns the hours until a restart would clear, measured from block start.
func (c *Calculator) checkConsecutive(e *evaluation, block models.Block, prior []worked) (float64, error) {
	runs, err := runsBefore(block.ServiceDate, prior)
	if err != nil {
		return 0, err
	}
	dayBefore, err := timewindow.AddDays(block.ServiceDate, -1)
	if err != nil {
		return 0, err
	}

	var current *run
	previous := runs
	if len(runs) > 0 && runs[0].last == dayBefore {
		current = &runs[0]
		previous = runs[1:]
	}

	streak := 0
	if current != nil {
		streak = current.days
	}
	ahead, err := daysAfter(block.ServiceDate, prior)
	if err != nil {
		return 0, err
	}
	combined := streak + 1 + ahead
	e.result.Metrics[MetricConsecutiveDays] = float64(combined)

	var lastEnd time.Time
	if len(runs) > 0 {
		lastEnd = runs[0].lastEnd
	}
	restartFrom := func(end time.Time) float64 {
		return max(0, end.Add(time.Duration(RestartHours*float64(time.Hour))).Sub(block.StartTimestamp).Hours())
	}

	var remaining float64
	switch {
	case streak > MaxConsecutiveDays:
		remaining = restartFrom(lastEnd)
		e.add(models.RuleConsecutiveDays, models.ValidationViolation, false,
			"driver has worked %d consecutive days; a %.0fh restart is required first", streak, RestartHours)
	case streak == MaxConsecutiveDays:
		remaining = restartFrom(block.EndTimestamp)
		e.add(models.RuleConsecutiveDays, models.ValidationWarning, false,
			"block would be consecutive day %d; a %.0fh restart is required after it", streak+1, RestartHours)
	case streak == MaxConsecutiveDays-1:
		e.add(models.RuleConsecutiveDays, models.ValidationWarning, false,
			"block would be consecutive day %d of %d", streak+1, MaxConsecutiveDays)
	}

	// Already assigned later days extend the run through this block.
	if ahead > 0 {
		switch {
		case combined > MaxConsecutiveDays+1 && streak <= MaxConsecutiveDays:
			e.add(models.RuleConsecutiveDays, models.ValidationViolation, false,
				"block joins %d days before and %d already assigned after into %d consecutive days", streak, ahead, combined)
		case combined == MaxConsecutiveDays+1 && streak < MaxConsecutiveDays:
			e.add(models.RuleConsecutiveDays, models.ValidationWarning, false,
				"block makes %d consecutive days with %d already assigned after it; a %.0fh restart is required at the end",
				combined, ahead, RestartHours)
		case combined == MaxConsecutiveDays && streak < MaxConsecutiveDays-1:
			e.add(models.RuleConsecutiveDays, models.ValidationWarning, false,
				"block makes %d of %d consecutive days with %d already assigned after it", combined, MaxConsecutiveDays, ahead)
		}
	}

	// A run that reached the limit only resets after a full restart. The
	// rest following it is measured to the next block worked, which is the
	// first block of the current run, or this block when there is none.
	if len(previous) > 0 && previous[0].days >= MaxConsecutiveDays {
		done := previous[0]
		next := block.StartTimestamp
		if current != nil {
			for _, w := range prior {
				if w.block.ServiceDate == current.first {
					next = w.block.StartTimestamp
					break
				}
			}
		}
		rest := next.Sub(done.lastEnd).Hours()
		if rest < RestartHours {
			remaining = max(remaining, restartFrom(lastEnd))
			e.add(models.RuleRestart34Hour, models.ValidationViolation, false,
				"only %.1fh off after %d consecutive days ending %s; %.0fh restart not complete",
				rest, done.days, done.last, RestartHours)
		}
	}

	if remaining > 0 {
		e.result.Metrics[MetricRestartHoursRemaining] = round1(remaining)
	}
	return remaining, nil
}

// recordWeek fills the week utilization metrics including block itself.
func (c *Calculator) recordWeek(e *evaluation, block models.Block, prior []worked) {
	weekStart := timewindow.WeekStart(block.StartTimestamp, c.loc)
	hours := block.Hours()
	for _, w := range prior {
		if timewindow.InWeek(w.block.StartTimestamp, weekStart) {
			hours += w.block.Hours()
		}
	}
	days := c.weekDays(block, prior)
	e.result.Metrics[MetricWeekDays] = float64(days)
	e.result.Metrics[MetricWeekHours] = round1(hours)
	e.result.Metrics[MetricUtilization] = round2(float64(days) / MaxConsecutiveDays)
}

func blockLabel(b models.Block) string {
	if b.ExternalID != "" {
		return b.ExternalID
	}
	return b.ID
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
