/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ranking orders drivers who could take over a block.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/haulroster/internal/compliance"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/workload"
)

// DefaultWorkers bounds concurrent per-driver evaluation.
const DefaultWorkers = 8

// ErrInvalidSnapshot indicates assignments that cannot be evaluated.
var ErrInvalidSnapshot = errors.New("invalid ranking snapshot")

// ExclusionReason explains why a pool driver is not a candidate.
type ExclusionReason string

const (
	ExcludedNotActive        ExclusionReason = "not_active"
	ExcludedSameDay          ExclusionReason = "same_day"
	ExcludedCurrentHolder    ExclusionReason = "current_holder"
	ExcludedContractMismatch ExclusionReason = "contract_mismatch"
	ExcludedHardRule         ExclusionReason = "hard_rule"
)

// DaysTarget compares a candidate's week, counting the block, with the
// driver's stated minimum and maximum days.
type DaysTarget string

const (
	DaysBelowMin DaysTarget = "below_min_days"
	DaysAboveMax DaysTarget = "above_max_days"
)

// Candidate is one eligible driver with the signals used to order them.
type Candidate struct {
	Driver             models.Driver           `json:"driver"`
	Workload           models.WorkloadSummary  `json:"workload"`
	ComplianceStatus   models.ValidationStatus `json:"compliance_status"`
	ComplianceMessages []string                `json:"compliance_messages"`
	ComplianceMetrics  map[string]float64      `json:"compliance_metrics"`
	HoursRemaining     float64                 `json:"hours_remaining"`
	DaysTarget         DaysTarget              `json:"days_target,omitempty"`
	PreferenceMessages []string                `json:"preference_messages,omitempty"`
}

// checkDays sets DaysTarget from the driver's preferences. Bounds outside
// 0..7 or with min above max are ignored.
func (c *Candidate) checkDays() {
	p := c.Driver.Preferences
	if p == nil || p.MinDays < 0 || p.MinDays > 7 || p.MaxDays < 0 || p.MaxDays > 7 {
		return
	}
	if p.MaxDays > 0 && p.MinDays > p.MaxDays {
		return
	}
	days := c.Workload.DaysWorked + 1
	switch {
	case p.MaxDays > 0 && days > p.MaxDays:
		c.DaysTarget = DaysAboveMax
		c.PreferenceMessages = append(c.PreferenceMessages,
			fmt.Sprintf("block would be day %d this week; driver prefers at most %d", days, p.MaxDays))
	case c.Workload.DaysWorked < p.MinDays:
		c.DaysTarget = DaysBelowMin
		c.PreferenceMessages = append(c.PreferenceMessages,
			fmt.Sprintf("driver has %d of a preferred minimum %d days this week", c.Workload.DaysWorked, p.MinDays))
	}
}

// Exclusion records a pool driver filtered out of the ranking.
type Exclusion struct {
	DriverID string          `json:"driver_id"`
	Reason   ExclusionReason `json:"reason"`
	Messages []string        `json:"messages,omitempty"`
}

// Ranking is the ordered result for one block. An empty Candidates list with
// a positive PoolSize means nobody in the pool is eligible; PoolSize zero
// means there was no pool.
type Ranking struct {
	BlockID    string      `json:"block_id"`
	PoolSize   int         `json:"pool_size"`
	Candidates []Candidate `json:"candidates"`
	Excluded   []Exclusion `json:"excluded"`
}

// PoolEmpty reports whether the ranking was computed over no drivers.
func (r *Ranking) PoolEmpty() bool {
	return r.PoolSize == 0
}

// Options tune candidate selection.
type Options struct {
	// Workers caps concurrent evaluations; DefaultWorkers when <= 0.
	Workers int
	// RequireContractMatch drops drivers whose contract type differs from
	// the block's solo type.
	RequireContractMatch bool
}

// Ranker ranks swap candidates. It is safe for concurrent use.
type Ranker struct {
	calc *compliance.Calculator
	opts Options
}

// NewRanker creates a ranker backed by calc.
func NewRanker(calc *compliance.Calculator, opts Options) *Ranker {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Ranker{calc: calc, opts: opts}
}

type evaluation struct {
	candidate Candidate
	excluded  *Exclusion
}

// FindSwapCandidates filters pool down to drivers who could take block and
// orders them by (compliance severity, workload level, days worked). Drivers
// that tie keep their pool order.
//
// assignments is the full active snapshot; each entry must carry its Block.
// rules may hold every driver's protected rules.
func (r *Ranker) FindSwapCandidates(ctx context.Context, block models.Block, pool []models.Driver, assignments []models.Assignment, rules []models.ProtectedDriverRule) (*Ranking, error) {
	result := &Ranking{
		BlockID:    block.ID,
		PoolSize:   len(pool),
		Candidates: []Candidate{},
		Excluded:   []Exclusion{},
	}
	if len(pool) == 0 {
		return result, nil
	}

	byDriver := make(map[string][]models.Assignment)
	sameDay := make(map[string]bool)
	holders := make(map[string]bool)
	for _, a := range assignments {
		if !a.IsActive {
			continue
		}
		if a.BlockID == block.ID {
			holders[a.DriverID] = true
			continue
		}
		if a.Block == nil {
			return nil, fmt.Errorf("%w: assignment %s has no block loaded", ErrInvalidSnapshot, a.ID)
		}
		byDriver[a.DriverID] = append(byDriver[a.DriverID], a)
		if a.Block.ServiceDate == block.ServiceDate {
			sameDay[a.DriverID] = true
		}
	}

	ownRules := make(map[string][]models.ProtectedDriverRule)
	var slotClaims []models.ProtectedDriverRule
	for _, rule := range rules {
		if rule.RuleType == models.ProtectedRuleExclusiveSlot {
			slotClaims = append(slotClaims, rule)
			continue
		}
		ownRules[rule.DriverID] = append(ownRules[rule.DriverID], rule)
	}

	evals := make([]evaluation, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i := range pool {
		driver := pool[i]
		switch {
		case !driver.IsActive():
			evals[i].excluded = &Exclusion{DriverID: driver.ID, Reason: ExcludedNotActive}
			continue
		case holders[driver.ID]:
			evals[i].excluded = &Exclusion{DriverID: driver.ID, Reason: ExcludedCurrentHolder}
			continue
		case sameDay[driver.ID]:
			evals[i].excluded = &Exclusion{DriverID: driver.ID, Reason: ExcludedSameDay}
			continue
		case r.opts.RequireContractMatch && driver.ContractType != block.SoloType:
			evals[i].excluded = &Exclusion{DriverID: driver.ID, Reason: ExcludedContractMismatch}
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			history := byDriver[driver.ID]
			driverRules := append(append([]models.ProtectedDriverRule(nil), ownRules[driver.ID]...), slotClaims...)

			res, err := r.calc.ValidateAssignment(driver, block, history, driverRules)
			if err != nil {
				return fmt.Errorf("validate driver %s: %w", driver.ID, err)
			}
			if res.HardExcluded() {
				evals[i].excluded = &Exclusion{DriverID: driver.ID, Reason: ExcludedHardRule, Messages: res.Messages}
				return nil
			}
			summary, err := workload.GetWeeklyWorkload(driver.ID, block.StartTimestamp, history, r.calc.Location())
			if err != nil {
				return fmt.Errorf("workload for driver %s: %w", driver.ID, err)
			}
			evals[i].candidate = Candidate{
				Driver:             driver,
				Workload:           summary,
				ComplianceStatus:   res.Status,
				ComplianceMessages: res.Messages,
				ComplianceMetrics:  res.Metrics,
				HoursRemaining:     res.HoursRemaining,
			}
			evals[i].candidate.checkDays()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, ev := range evals {
		if ev.excluded != nil {
			result.Excluded = append(result.Excluded, *ev.excluded)
			continue
		}
		result.Candidates = append(result.Candidates, ev.candidate)
	}
	Sort(result.Candidates)
	return result, nil
}

// Sort orders candidates in place by compliance severity, workload level and
// days worked, preserving input order among equals.
func Sort(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if sa, sb := a.ComplianceStatus.Severity(), b.ComplianceStatus.Severity(); sa != sb {
			return sa < sb
		}
		if ra, rb := a.Workload.Level.Rank(), b.Workload.Level.Rank(); ra != rb {
			return ra < rb
		}
		return a.Workload.DaysWorked < b.Workload.DaysWorked
	})
}
