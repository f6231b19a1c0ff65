/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package matching aggregates a driver's worked slots over cascading lookback
// windows and scores how well a block fits the driver's preferences.
package matching

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// Windows are the lookback spans in weeks, widest first. Each window
// contains every shorter one.
var Windows = []int{12, 8, 3, 2, 1}

// WidestWindow is the span used for TotalHistory.
const WidestWindow = 12

// ErrMissingBlock indicates a historical assignment without its block.
var ErrMissingBlock = errors.New("assignment has no block loaded")

// SlotKey identifies a recurring slot by weekday and canonical start.
type SlotKey struct {
	Weekday time.Weekday `json:"weekday"`
	Time    string       `json:"time"` // HH:MM
}

// String renders the slot as "Monday 16:30".
func (k SlotKey) String() string {
	return k.Weekday.String() + " " + k.Time
}

// SlotCounts counts assignments per slot.
type SlotCounts map[SlotKey]int

// History is one driver's cascading slot counts.
type History struct {
	DriverID         string
	CurrentWeekStart time.Time
	// Windows maps a lookback span in weeks to slot counts within it.
	Windows map[int]SlotCounts
	// WeekdayCounts counts worked blocks per weekday in the widest window.
	WeekdayCounts map[time.Weekday]int
	// TotalHistory is the number of assignments in the widest window.
	TotalHistory int
}

// Count returns the slot count for a window span.
func (h *History) Count(weeks int, slot SlotKey) int {
	if h == nil {
		return 0
	}
	return h.Windows[weeks][slot]
}

// WindowSum adds the slot's count across all windows, which weighs recent
// work more heavily since recent weeks appear in every window.
func (h *History) WindowSum(slot SlotKey) int {
	if h == nil {
		return 0
	}
	total := 0
	for _, w := range Windows {
		total += h.Windows[w][slot]
	}
	return total
}

// WeekdayCount returns worked blocks on weekday in the widest window.
func (h *History) WeekdayCount(weekday time.Weekday) int {
	if h == nil {
		return 0
	}
	return h.WeekdayCounts[weekday]
}

// WindowSummary is the JSON form of one lookback window.
type WindowSummary struct {
	Weeks int            `json:"weeks"`
	Total int            `json:"total"`
	Slots map[string]int `json:"slots"`
}

// Summaries renders the windows widest first, keyed by SlotKey.String.
func (h *History) Summaries() []WindowSummary {
	out := make([]WindowSummary, 0, len(Windows))
	for _, w := range Windows {
		s := WindowSummary{Weeks: w, Slots: make(map[string]int)}
		for k, n := range h.Windows[w] {
			s.Slots[k.String()] = n
			s.Total += n
		}
		out = append(out, s)
	}
	return out
}

// Aggregator builds History values. It is read-only and safe to share.
type Aggregator struct {
	table *contracts.Table
	loc   *time.Location
}

// NewAggregator creates an aggregator resolving canonical times from table.
func NewAggregator(table *contracts.Table, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{table: table, loc: loc}
}

// SlotFor resolves the slot a block occupies.
func (a *Aggregator) SlotFor(b models.Block) (SlotKey, error) {
	wd, err := timewindow.DateWeekday(b.ServiceDate)
	if err != nil {
		return SlotKey{}, err
	}
	clock, err := a.table.ForBlock(b)
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{Weekday: wd, Time: clock}, nil
}

// AggregateHistory counts the driver's worked slots in each lookback window
// ending at the start of the week containing currentWeekStart. Unassigned
// (inactive) assignments are not work and are skipped. A block whose
// canonical time cannot be resolved fails the whole aggregation.
func (a *Aggregator) AggregateHistory(driverID string, currentWeekStart time.Time, historical []models.Assignment) (*History, error) {
	weekStart := timewindow.WeekStart(currentWeekStart, a.loc)
	h := &History{
		DriverID:         driverID,
		CurrentWeekStart: weekStart,
		Windows:          make(map[int]SlotCounts, len(Windows)),
		WeekdayCounts:    make(map[time.Weekday]int),
	}
	for _, w := range Windows {
		h.Windows[w] = make(SlotCounts)
	}

	for _, asg := range historical {
		if asg.DriverID != driverID || !asg.IsActive {
			continue
		}
		if asg.Block == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBlock, asg.ID)
		}
		start := asg.Block.StartTimestamp
		if !start.Before(weekStart) || start.Before(timewindow.AddWeeks(weekStart, -WidestWindow)) {
			continue
		}
		slot, err := a.SlotFor(*asg.Block)
		if err != nil {
			return nil, fmt.Errorf("aggregate history for %s: %w", driverID, err)
		}
		for _, w := range Windows {
			if !start.Before(timewindow.AddWeeks(weekStart, -w)) {
				h.Windows[w][slot]++
			}
		}
		h.WeekdayCounts[slot.Weekday]++
		h.TotalHistory++
	}
	return h, nil
}

// AggregateAll aggregates every driver in driverIDs over a shared snapshot.
func (a *Aggregator) AggregateAll(driverIDs []string, currentWeekStart time.Time, historical []models.Assignment) (map[string]*History, error) {
	byDriver := make(map[string][]models.Assignment)
	for _, asg := range historical {
		byDriver[asg.DriverID] = append(byDriver[asg.DriverID], asg)
	}
	out := make(map[string]*History, len(driverIDs))
	for _, id := range driverIDs {
		h, err := a.AggregateHistory(id, currentWeekStart, byDriver[id])
		if err != nil {
			return nil, err
		}
		out[id] = h
	}
	return out, nil
}

// topSlots lists slots by descending count, ties by weekday then time.
func topSlots(counts SlotCounts, limit int) []SlotKey {
	keys := make([]SlotKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].Weekday != keys[j].Weekday {
			return keys[i].Weekday < keys[j].Weekday
		}
		return strings.Compare(keys[i].Time, keys[j].Time) < 0
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
