/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dispatch wires the compliance, workload, ranking and matching
// engines to persistence. Engines stay pure; this package loads the
// snapshot each of them needs and records the outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/haulroster/internal/compliance"
	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/events"
	"github.com/friendsincode/haulroster/internal/matching"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/ranking"
	"github.com/friendsincode/haulroster/internal/store"
	"github.com/friendsincode/haulroster/internal/telemetry"
	"github.com/friendsincode/haulroster/internal/timewindow"
	"github.com/friendsincode/haulroster/internal/workload"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "haulroster/dispatch"

// Compliance needs the current consecutive run, the run before it and the
// whole calendar week, plus the blocks right after the target.
const (
	complianceLookback  = 28 * 24 * time.Hour
	complianceLookahead = 8 * 24 * time.Hour
)

var (
	// ErrComplianceViolation is returned when an assignment fails compliance
	// and no permitted override was requested.
	ErrComplianceViolation = errors.New("assignment violates compliance rules")

	// ErrLockTimeout is returned when the block or driver stays locked by
	// another writer past the configured timeout.
	ErrLockTimeout = errors.New("timed out waiting for assignment lock")

	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// Repository is the persistence surface the service needs. store.Store and
// store.Memory both satisfy it.
type Repository interface {
	Driver(ctx context.Context, id string) (models.Driver, error)
	Drivers(ctx context.Context) ([]models.Driver, error)
	Block(ctx context.Context, id string) (models.Block, error)
	Blocks(ctx context.Context, from, to time.Time) ([]models.Block, error)
	ActiveAssignments(ctx context.Context, f store.AssignmentFilter) ([]models.Assignment, error)
	ActiveRules(ctx context.Context) ([]models.ProtectedDriverRule, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	Unassign(ctx context.Context, id string, at time.Time) (models.Assignment, error)
}

// HistoryCache stores aggregated slot history and weekly workload.
type HistoryCache interface {
	GetHistory(ctx context.Context, driverID string, weekStart time.Time) (*matching.History, bool)
	SetHistory(ctx context.Context, h *matching.History) error
	GetWorkload(ctx context.Context, driverID string, weekStart time.Time) (models.WorkloadSummary, bool)
	SetWorkload(ctx context.Context, ws models.WorkloadSummary) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// Options configure the service.
type Options struct {
	Location               *time.Location
	Table                  *contracts.Table
	Workers                int
	RequireContractMatch   bool
	AllowViolationOverride bool
	LockTimeout            time.Duration
}

// Service answers dispatch questions and records assignments.
type Service struct {
	repo   Repository
	cache  HistoryCache
	bus    events.Publisher
	logger zerolog.Logger

	loc    *time.Location
	table  *contracts.Table
	calc   *compliance.Calculator
	ranker *ranking.Ranker
	agg    *matching.Aggregator
	plan   *matching.Planner

	allowOverride bool
	lockTimeout   time.Duration
	locks         *keyedLocks
	now           func() time.Time
}

// New creates a service over repo.
func New(repo Repository, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Table == nil {
		opts.Table = contracts.Default()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	calc := compliance.NewCalculator(opts.Location)
	ranker := ranking.NewRanker(calc, ranking.Options{Workers: opts.Workers, RequireContractMatch: opts.RequireContractMatch})
	agg := matching.NewAggregator(opts.Table, opts.Location)
	return &Service{
		repo:          repo,
		logger:        logger.With().Str("component", "dispatch").Logger(),
		loc:           opts.Location,
		table:         opts.Table,
		calc:          calc,
		ranker:        ranker,
		agg:           agg,
		plan:          matching.NewPlanner(agg, ranker),
		allowOverride: opts.AllowViolationOverride,
		lockTimeout:   opts.LockTimeout,
		locks:         newKeyedLocks(),
		now:           time.Now,
	}
}

// SetCache enables the history cache.
func (s *Service) SetCache(c HistoryCache) { s.cache = c }

// SetPublisher enables assignment events.
func (s *Service) SetPublisher(p events.Publisher) { s.bus = p }

// Location returns the tenant calendar.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) startSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, trace.Span) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, name)
	telemetry.AddSpanAttributes(span, attrs)
	return ctx, span
}

func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, payload)
}

func (s *Service) invalidate(ctx context.Context, driverID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDriver(ctx, driverID); err != nil {
		s.logger.Warn().Err(err).Str("driver_id", driverID).Msg("cache invalidation failed")
	}
}

// ValidateAssignment runs the compliance engine for driverID taking blockID.
func (s *Service) ValidateAssignment(ctx context.Context, driverID, blockID string) (models.ComplianceResult, error) {
	ctx, span := s.startSpan(ctx, "dispatch.ValidateAssignment", map[string]any{"driver_id": driverID, "block_id": blockID})
	defer span.End()

	driver, block, err := s.load(ctx, driverID, blockID)
	if err != nil {
		telemetry.RecordError(span, err)
		return models.ComplianceResult{}, err
	}
	res, err := s.validate(ctx, driver, block)
	if err != nil {
		telemetry.RecordError(span, err)
		return models.ComplianceResult{}, err
	}
	telemetry.AddSpanAttributes(span, map[string]any{"status": string(res.Status)})
	return res, nil
}

func (s *Service) load(ctx context.Context, driverID, blockID string) (models.Driver, models.Block, error) {
	if driverID == "" || blockID == "" {
		return models.Driver{}, models.Block{}, fmt.Errorf("%w: driver_id and block_id are required", ErrInvalidRequest)
	}
	driver, err := s.repo.Driver(ctx, driverID)
	if err != nil {
		return models.Driver{}, models.Block{}, err
	}
	block, err := s.repo.Block(ctx, blockID)
	if err != nil {
		return models.Driver{}, models.Block{}, err
	}
	return driver, block, nil
}

func (s *Service) validate(ctx context.Context, driver models.Driver, block models.Block) (models.ComplianceResult, error) {
	history, err := s.repo.ActiveAssignments(ctx, store.AssignmentFilter{
		DriverID: driver.ID,
		From:     block.StartTimestamp.Add(-complianceLookback),
		To:       block.StartTimestamp.Add(complianceLookahead),
	})
	if err != nil {
		return models.ComplianceResult{}, err
	}
	rules, err := s.repo.ActiveRules(ctx)
	if err != nil {
		return models.ComplianceResult{}, err
	}
	res, err := s.calc.ValidateAssignment(driver, block, history, rules)
	if err != nil {
		return models.ComplianceResult{}, err
	}
	telemetry.ComplianceEvaluationsTotal.WithLabelValues(string(res.Status)).Inc()
	return res, nil
}

// WeeklyWorkload summarizes the driver's Sunday-Saturday week containing date.
func (s *Service) WeeklyWorkload(ctx context.Context, driverID string, date time.Time) (models.WorkloadSummary, error) {
	ctx, span := s.startSpan(ctx, "dispatch.WeeklyWorkload", map[string]any{"driver_id": driverID})
	defer span.End()

	if _, err := s.repo.Driver(ctx, driverID); err != nil {
		telemetry.RecordError(span, err)
		return models.WorkloadSummary{}, err
	}
	start, end := timewindow.WeekBounds(date, s.loc)
	if s.cache != nil {
		if ws, ok := s.cache.GetWorkload(ctx, driverID, start); ok {
			return ws, nil
		}
	}

	assignments, err := s.repo.ActiveAssignments(ctx, store.AssignmentFilter{DriverID: driverID, From: start, To: end})
	if err != nil {
		telemetry.RecordError(span, err)
		return models.WorkloadSummary{}, err
	}
	ws, err := workload.GetWeeklyWorkload(driverID, date, assignments, s.loc)
	if err != nil {
		telemetry.RecordError(span, err)
		return models.WorkloadSummary{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetWorkload(ctx, ws); err != nil {
			s.logger.Debug().Err(err).Msg("workload cache write failed")
		}
	}
	return ws, nil
}

// SwapCandidates ranks every driver who could take blockID.
func (s *Service) SwapCandidates(ctx context.Context, blockID string) (*ranking.Ranking, error) {
	ctx, span := s.startSpan(ctx, "dispatch.SwapCandidates", map[string]any{"block_id": blockID})
	defer span.End()
	started := time.Now()

	block, err := s.repo.Block(ctx, blockID)
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
		From: block.StartTimestamp.Add(-complianceLookback),
		To:   block.StartTimestamp.Add(complianceLookahead),
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

	result, err := s.ranker.FindSwapCandidates(ctx, block, pool, assignments, rules)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.RankingDuration.Observe(time.Since(started).Seconds())
	telemetry.RankingPoolSize.Observe(float64(result.PoolSize))
	telemetry.AddSpanAttributes(span, map[string]any{
		"pool_size":  result.PoolSize,
		"candidates": len(result.Candidates),
	})
	s.logger.Debug().
		Str("block_id", blockID).
		Int("pool_size", result.PoolSize).
		Int("candidates", len(result.Candidates)).
		Dur("elapsed", time.Since(started)).
		Msg("ranked swap candidates")
	return result, nil
}
