/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/ranking"
	"github.com/friendsincode/haulroster/internal/timewindow"
	"github.com/friendsincode/haulroster/internal/workload"
)

// DefaultFillMinDays is the distinct weekdays a driver must have worked in
// the widest window before FillWeek plans them.
const DefaultFillMinDays = 3

// UnfilledReason says why FillWeek left a block open.
type UnfilledReason string

const (
	UnfilledNoHistory        UnfilledReason = "no_history_candidates"
	UnfilledNoLegalCandidate UnfilledReason = "no_legal_candidate"
)

// PlannedAssignment is one proposed driver for an open block.
type PlannedAssignment struct {
	BlockID          string                  `json:"block_id"`
	DriverID         string                  `json:"driver_id"`
	ServiceDate      string                  `json:"service_date"`
	Slot             string                  `json:"slot"`
	HistoryCount     int                     `json:"history_count"`
	SlotOwner        bool                    `json:"slot_owner"`
	ComplianceStatus models.ValidationStatus `json:"compliance_status"`
}

// UnfilledBlock is an open block FillWeek could not staff.
type UnfilledBlock struct {
	BlockID    string         `json:"block_id"`
	Reason     UnfilledReason `json:"reason"`
	Candidates int            `json:"candidates"`
}

// FillPlan is a proposed staffing of a week's open blocks. It is advisory;
// nothing is persisted.
type FillPlan struct {
	WeekStart   time.Time                         `json:"week_start"`
	MinDays     int                               `json:"min_days"`
	Qualified   int                               `json:"qualified_drivers"`
	Assignments []PlannedAssignment               `json:"assignments"`
	Unfilled    []UnfilledBlock                   `json:"unfilled"`
	Workloads   map[string]models.WorkloadSummary `json:"workloads"`
	// BelowMinDays lists planned drivers still short of their stated
	// minimum days after the plan.
	BelowMinDays []string `json:"below_min_days"`
}

// Planner fills a week greedily from slot history.
type Planner struct {
	agg    *Aggregator
	ranker *ranking.Ranker
}

// NewPlanner creates a planner. The ranker supplies legality checks.
func NewPlanner(agg *Aggregator, ranker *ranking.Ranker) *Planner {
	return &Planner{agg: agg, ranker: ranker}
}

// FillInput is the snapshot FillWeek plans over.
type FillInput struct {
	WeekStart time.Time
	// Blocks are the week's blocks; those already held are skipped.
	Blocks []models.Block
	Pool   []models.Driver
	// Assignments must cover the widest history window before the week and
	// the compliance lookback and lookahead around it, each with its Block.
	Assignments []models.Assignment
	Rules       []models.ProtectedDriverRule
	MinDays     int
}

type fillCandidate struct {
	driver models.Driver
	count  int
}

// FillWeek proposes a driver for each open block. Blocks with the fewest
// history candidates go first. Only drivers of the block's contract type
// who have worked the block's slot and at least MinDays distinct weekdays
// are considered. Among legal candidates the one with the most slot history
// wins, then the slot owner, then a driver below their stated minimum days,
// then ranking order. Drivers over their stated maximum days are skipped.
// Each planned block is added to the snapshot before the next is ranked, so
// the one-block-per-date and duty-hour rules hold across the plan.
func (p *Planner) FillWeek(ctx context.Context, in FillInput) (*FillPlan, error) {
	weekStart := timewindow.WeekStart(in.WeekStart, p.agg.loc)
	minDays := in.MinDays
	if minDays <= 0 {
		minDays = DefaultFillMinDays
	}
	plan := &FillPlan{
		WeekStart:    weekStart,
		MinDays:      minDays,
		Assignments:  []PlannedAssignment{},
		Unfilled:     []UnfilledBlock{},
		Workloads:    map[string]models.WorkloadSummary{},
		BelowMinDays: []string{},
	}

	ids := make([]string, 0, len(in.Pool))
	for _, d := range in.Pool {
		ids = append(ids, d.ID)
	}
	histories, err := p.agg.AggregateAll(ids, weekStart, in.Assignments)
	if err != nil {
		return nil, err
	}
	owners, err := p.agg.SlotOwners(weekStart, in.Assignments)
	if err != nil {
		return nil, err
	}
	ownerOf := make(map[Slot]string, len(owners))
	for _, o := range owners {
		ownerOf[o.Slot] = o.OwnerID
	}

	var qualified []models.Driver
	for _, d := range in.Pool {
		if !d.IsActive() {
			continue
		}
		days := 0
		for _, n := range histories[d.ID].WeekdayCounts {
			if n > 0 {
				days++
			}
		}
		if days >= minDays {
			qualified = append(qualified, d)
		}
	}
	plan.Qualified = len(qualified)

	held := make(map[string]bool)
	for _, a := range in.Assignments {
		if a.IsActive {
			held[a.BlockID] = true
		}
	}

	type openBlock struct {
		block models.Block
		key   SlotKey
		cands []fillCandidate
	}
	var open []openBlock
	for _, b := range in.Blocks {
		if held[b.ID] || !timewindow.InWeek(b.StartTimestamp, weekStart) {
			continue
		}
		key, err := p.agg.SlotFor(b)
		if err != nil {
			return nil, fmt.Errorf("fill week: block %s: %w", b.ID, err)
		}
		ob := openBlock{block: b, key: key}
		for _, d := range qualified {
			if d.ContractType != b.SoloType {
				continue
			}
			if n := histories[d.ID].Count(WidestWindow, key); n > 0 {
				ob.cands = append(ob.cands, fillCandidate{driver: d, count: n})
			}
		}
		open = append(open, ob)
	}
	sort.SliceStable(open, func(i, j int) bool {
		a, b := open[i], open[j]
		if len(a.cands) != len(b.cands) {
			return len(a.cands) < len(b.cands)
		}
		if !a.block.StartTimestamp.Equal(b.block.StartTimestamp) {
			return a.block.StartTimestamp.Before(b.block.StartTimestamp)
		}
		return a.block.ID < b.block.ID
	})

	snapshot := append([]models.Assignment(nil), in.Assignments...)
	planned := make(map[string]bool)

	for _, ob := range open {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(ob.cands) == 0 {
			plan.Unfilled = append(plan.Unfilled, UnfilledBlock{BlockID: ob.block.ID, Reason: UnfilledNoHistory})
			continue
		}

		counts := make(map[string]int, len(ob.cands))
		pool := make([]models.Driver, 0, len(ob.cands))
		for _, c := range ob.cands {
			counts[c.driver.ID] = c.count
			pool = append(pool, c.driver)
		}
		rk, err := p.ranker.FindSwapCandidates(ctx, ob.block, pool, snapshot, in.Rules)
		if err != nil {
			return nil, err
		}

		owner := ownerOf[Slot{
			SoloType:      ob.block.SoloType,
			TractorID:     contracts.NormalizeTractor(ob.block.TractorID),
			Weekday:       ob.key.Weekday,
			CanonicalTime: ob.key.Time,
		}]
		var best *ranking.Candidate
		better := func(c, b *ranking.Candidate) bool {
			if counts[c.Driver.ID] != counts[b.Driver.ID] {
				return counts[c.Driver.ID] > counts[b.Driver.ID]
			}
			if co, bo := c.Driver.ID == owner, b.Driver.ID == owner; co != bo {
				return co
			}
			return c.DaysTarget == ranking.DaysBelowMin && b.DaysTarget != ranking.DaysBelowMin
		}
		for i := range rk.Candidates {
			c := &rk.Candidates[i]
			if c.ComplianceStatus == models.ValidationViolation || c.DaysTarget == ranking.DaysAboveMax {
				continue
			}
			if best == nil || better(c, best) {
				best = c
			}
		}
		if best == nil {
			plan.Unfilled = append(plan.Unfilled, UnfilledBlock{
				BlockID:    ob.block.ID,
				Reason:     UnfilledNoLegalCandidate,
				Candidates: len(ob.cands),
			})
			continue
		}

		b := ob.block
		snapshot = append(snapshot, models.Assignment{
			ID:       "planned-" + b.ID,
			BlockID:  b.ID,
			DriverID: best.Driver.ID,
			IsActive: true,
			Block:    &b,
		})
		planned[best.Driver.ID] = true
		plan.Assignments = append(plan.Assignments, PlannedAssignment{
			BlockID:          b.ID,
			DriverID:         best.Driver.ID,
			ServiceDate:      b.ServiceDate,
			Slot:             ob.key.String(),
			HistoryCount:     counts[best.Driver.ID],
			SlotOwner:        best.Driver.ID == owner,
			ComplianceStatus: best.ComplianceStatus,
		})
	}

	sort.SliceStable(plan.Assignments, func(i, j int) bool {
		if plan.Assignments[i].ServiceDate != plan.Assignments[j].ServiceDate {
			return plan.Assignments[i].ServiceDate < plan.Assignments[j].ServiceDate
		}
		return plan.Assignments[i].BlockID < plan.Assignments[j].BlockID
	})

	var plannedIDs []string
	for _, d := range in.Pool {
		if planned[d.ID] {
			plannedIDs = append(plannedIDs, d.ID)
		}
	}
	summaries, err := workload.Summaries(plannedIDs, weekStart, snapshot, p.agg.loc)
	if err != nil {
		return nil, err
	}
	plan.Workloads = summaries
	for _, d := range in.Pool {
		if !planned[d.ID] || d.Preferences == nil {
			continue
		}
		if summaries[d.ID].DaysWorked < d.Preferences.MinDays {
			plan.BelowMinDays = append(plan.BelowMinDays, d.ID)
		}
	}
	return plan, nil
}
