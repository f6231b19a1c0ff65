/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/haulroster/internal/events"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/store"
	"github.com/friendsincode/haulroster/internal/telemetry"
)

// CreateRequest asks for driverID to take blockID.
type CreateRequest struct {
	DriverID string `json:"driver_id"`
	BlockID  string `json:"block_id"`
	// Force persists a violating assignment when overrides are enabled.
	Force bool   `json:"force"`
	Notes string `json:"notes"`
}

// Outcome carries the compliance result even when the assignment is refused.
type Outcome struct {
	Assignment *models.Assignment      `json:"assignment,omitempty"`
	Compliance models.ComplianceResult `json:"compliance"`
	Forced     bool                    `json:"forced"`
}

// CreateAssignment validates and records an assignment. Writers are
// serialized per block and per driver so that no two concurrent requests
// can both pass validation against the same state.
func (s *Service) CreateAssignment(ctx context.Context, req CreateRequest) (Outcome, error) {
	ctx, span := s.startSpan(ctx, "dispatch.CreateAssignment", map[string]any{
		"driver_id": req.DriverID,
		"block_id":  req.BlockID,
		"force":     req.Force,
	})
	defer span.End()

	if req.DriverID == "" || req.BlockID == "" {
		return Outcome{}, fmt.Errorf("%w: driver_id and block_id are required", ErrInvalidRequest)
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	waitStart := s.now()
	release, err := s.locks.Acquire(lockCtx, "block:"+req.BlockID, "driver:"+req.DriverID)
	cancel()
	telemetry.AssignmentLockWaitSeconds.Observe(s.now().Sub(waitStart).Seconds())
	if err != nil {
		telemetry.AssignmentsRejectedTotal.WithLabelValues("lock_timeout").Inc()
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, ErrLockTimeout
	}
	defer release()

	driver, block, err := s.load(ctx, req.DriverID, req.BlockID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	res, err := s.validate(ctx, driver, block)
	if err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	out := Outcome{Compliance: res}

	if res.Status == models.ValidationViolation {
		if !req.Force || !s.allowOverride {
			telemetry.AssignmentsRejectedTotal.WithLabelValues("violation").Inc()
			s.publish(events.EventAssignmentRejected, events.Payload{
				"driver_id": req.DriverID,
				"block_id":  req.BlockID,
				"messages":  res.Messages,
			})
			s.logger.Info().
				Str("driver_id", req.DriverID).
				Str("block_id", req.BlockID).
				Strs("messages", res.Messages).
				Msg("assignment refused")
			return out, ErrComplianceViolation
		}
		out.Forced = true
		s.logger.Warn().
			Str("driver_id", req.DriverID).
			Str("block_id", req.BlockID).
			Strs("messages", res.Messages).
			Msg("forcing assignment past compliance violation")
	}

	now := s.now().UTC()
	a := &models.Assignment{
		BlockID:           block.ID,
		DriverID:          driver.ID,
		AssignedAt:        now,
		ValidationStatus:  res.Status,
		ValidationSummary: res.Summary(now),
		Notes:             req.Notes,
	}
	if out.Forced {
		a.ValidationSummary["forced"] = true
	}
	if err := s.repo.CreateAssignment(ctx, a); err != nil {
		if errors.Is(err, store.ErrBlockAlreadyAssigned) {
			telemetry.AssignmentsRejectedTotal.WithLabelValues("already_assigned").Inc()
		}
		telemetry.RecordError(span, err)
		return out, err
	}
	out.Assignment = a

	s.invalidate(ctx, driver.ID)
	telemetry.AssignmentsCreatedTotal.WithLabelValues(string(res.Status)).Inc()
	s.publish(events.EventAssignmentCreated, events.Payload{
		"assignment_id":     a.ID,
		"driver_id":         a.DriverID,
		"block_id":          a.BlockID,
		"service_date":      block.ServiceDate,
		"validation_status": string(a.ValidationStatus),
		"forced":            out.Forced,
	})
	s.logger.Info().
		Str("assignment_id", a.ID).
		Str("driver_id", a.DriverID).
		Str("block_id", a.BlockID).
		Str("status", string(a.ValidationStatus)).
		Msg("assignment created")
	return out, nil
}

// Unassign deactivates an assignment.
func (s *Service) Unassign(ctx context.Context, assignmentID string) (models.Assignment, error) {
	ctx, span := s.startSpan(ctx, "dispatch.Unassign", map[string]any{"assignment_id": assignmentID})
	defer span.End()

	if assignmentID == "" {
		return models.Assignment{}, fmt.Errorf("%w: assignment id is required", ErrInvalidRequest)
	}
	a, err := s.repo.Unassign(ctx, assignmentID, s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		return models.Assignment{}, err
	}

	s.invalidate(ctx, a.DriverID)
	s.publish(events.EventAssignmentUnassigned, events.Payload{
		"assignment_id": a.ID,
		"driver_id":     a.DriverID,
		"block_id":      a.BlockID,
	})
	s.logger.Info().Str("assignment_id", a.ID).Str("driver_id", a.DriverID).Msg("assignment unassigned")
	return a, nil
}
