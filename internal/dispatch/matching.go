/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/haulroster/internal/matching"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/store"
	"github.com/friendsincode/haulroster/internal/telemetry"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// HistoryReport is a driver's slot history with the derived profile.
type HistoryReport struct {
	DriverID     string                   `json:"driver_id"`
	WeekStart    time.Time                `json:"week_start"`
	TotalHistory int                      `json:"total_history"`
	Windows      []matching.WindowSummary `json:"windows"`
	Profile      matching.Profile         `json:"profile"`
}

// MatchReport scores one driver against one block.
type MatchReport struct {
	DriverID      string                  `json:"driver_id"`
	BlockID       string                  `json:"block_id"`
	CanonicalTime string                  `json:"canonical_time"`
	Weekday       string                  `json:"weekday"`
	Match         matching.MatchScore     `json:"match"`
	Profile       matching.Profile        `json:"profile"`
	Compliance    models.ComplianceResult `json:"compliance"`
}

// history aggregates the driver's slots for the week containing weekDate,
// consulting the cache first.
func (s *Service) history(ctx context.Context, driverID string, weekDate time.Time) (*matching.History, error) {
	weekStart := timewindow.WeekStart(weekDate, s.loc)
	if s.cache != nil {
		if h, ok := s.cache.GetHistory(ctx, driverID, weekStart); ok {
			return h, nil
		}
	}

	historical, err := s.repo.ActiveAssignments(ctx, store.AssignmentFilter{
		DriverID: driverID,
		From:     timewindow.AddWeeks(weekStart, -matching.WidestWindow),
		To:       weekStart,
	})
	if err != nil {
		return nil, err
	}
	h, err := s.agg.AggregateHistory(driverID, weekStart, historical)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetHistory(ctx, h); err != nil {
			s.logger.Debug().Err(err).Msg("history cache write failed")
		}
	}
	return h, nil
}

// DriverHistory reports the driver's cascading slot counts before the week
// containing weekStart.
func (s *Service) DriverHistory(ctx context.Context, driverID string, weekStart time.Time) (HistoryReport, error) {
	ctx, span := s.startSpan(ctx, "dispatch.DriverHistory", map[string]any{"driver_id": driverID})
	defer span.End()

	driver, err := s.repo.Driver(ctx, driverID)
	if err != nil {
		telemetry.RecordError(span, err)
		return HistoryReport{}, err
	}
	h, err := s.history(ctx, driverID, weekStart)
	if err != nil {
		telemetry.RecordError(span, err)
		return HistoryReport{}, err
	}
	return HistoryReport{
		DriverID:     driverID,
		WeekStart:    h.CurrentWeekStart,
		TotalHistory: h.TotalHistory,
		Windows:      h.Summaries(),
		Profile:      matching.ClassifyDriver(driver, h),
	}, nil
}

// ScoreMatch scores how well blockID fits driverID's preferences and
// history. A zero weekStart uses the week containing the block.
func (s *Service) ScoreMatch(ctx context.Context, driverID, blockID string, weekStart time.Time) (MatchReport, error) {
	ctx, span := s.startSpan(ctx, "dispatch.ScoreMatch", map[string]any{"driver_id": driverID, "block_id": blockID})
	defer span.End()

	driver, block, err := s.load(ctx, driverID, blockID)
	if err != nil {
		telemetry.RecordError(span, err)
		return MatchReport{}, err
	}
	if weekStart.IsZero() {
		weekStart = block.StartTimestamp
	}

	canonical, err := s.table.ForBlock(block)
	if err != nil {
		telemetry.RecordError(span, err)
		return MatchReport{}, err
	}
	weekday, err := timewindow.DateWeekday(block.ServiceDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return MatchReport{}, err
	}

	h, err := s.history(ctx, driverID, weekStart)
	if err != nil {
		telemetry.RecordError(span, err)
		return MatchReport{}, err
	}
	res, err := s.validate(ctx, driver, block)
	if err != nil {
		telemetry.RecordError(span, err)
		return MatchReport{}, err
	}

	profile := matching.ClassifyDriver(driver, h)
	score, err := matching.ScoreMatch(matching.MatchInput{
		Profile:          profile,
		History:          h,
		Weekday:          weekday,
		CanonicalTime:    canonical,
		LegallyAvailable: res.Status != models.ValidationViolation,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return MatchReport{}, err
	}
	telemetry.AddSpanAttributes(span, map[string]any{"tier": score.Tier, "score": score.Score})

	return MatchReport{
		DriverID:      driverID,
		BlockID:       blockID,
		CanonicalTime: canonical,
		Weekday:       weekday.String(),
		Match:         score,
		Profile:       profile,
		Compliance:    res,
	}, nil
}

// SlotOwners names the regular driver of every slot worked in the widest
// lookback window before the week containing weekStart.
func (s *Service) SlotOwners(ctx context.Context, weekStart time.Time) ([]matching.SlotOwnership, error) {
	ctx, span := s.startSpan(ctx, "dispatch.SlotOwners", nil)
	defer span.End()

	start := timewindow.WeekStart(weekStart, s.loc)
	historical, err := s.repo.ActiveAssignments(ctx, store.AssignmentFilter{
		From: timewindow.AddWeeks(start, -matching.WidestWindow),
		To:   start,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	owners, err := s.agg.SlotOwners(start, historical)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return owners, nil
}

// FillWeek proposes drivers for the open blocks in the week containing
// weekStart. minDays of zero uses matching.DefaultFillMinDays. Nothing is
// persisted.
func (s *Service) FillWeek(ctx context.Context, weekStart time.Time, minDays int) (*matching.FillPlan, error) {
	ctx, span := s.startSpan(ctx, "dispatch.FillWeek", map[string]any{"min_days": minDays})
	defer span.End()

	if minDays < 0 || minDays > 7 {
		err := fmt.Errorf("%w: min_days must be between 0 and 7", ErrInvalidRequest)
		telemetry.RecordError(span, err)
		return nil, err
	}
	start, end := timewindow.WeekBounds(weekStart, s.loc)

	blocks, err := s.repo.Blocks(ctx, start, end)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	pool, err := s.repo.Drivers(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	assignments, err := s.repo.ActiveAssignments(ctx, store.AssignmentFilter{
		From: timewindow.AddWeeks(start, -matching.WidestWindow),
		To:   end.Add(complianceLookahead),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rules, err := s.repo.ActiveRules(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	plan, err := s.plan.FillWeek(ctx, matching.FillInput{
		WeekStart:   start,
		Blocks:      blocks,
		Pool:        pool,
		Assignments: assignments,
		Rules:       rules,
		MinDays:     minDays,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.AddSpanAttributes(span, map[string]any{
		"planned":  len(plan.Assignments),
		"unfilled": len(plan.Unfilled),
	})
	s.logger.Debug().
		Time("week_start", start).
		Int("planned", len(plan.Assignments)).
		Int("unfilled", len(plan.Unfilled)).
		Msg("filled week")
	return plan, nil
}
