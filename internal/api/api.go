/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/haulroster/internal/compliance"
	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/dispatch"
	"github.com/friendsincode/haulroster/internal/matching"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/ranking"
	"github.com/friendsincode/haulroster/internal/store"
	"github.com/friendsincode/haulroster/internal/timewindow"
	"github.com/friendsincode/haulroster/internal/workload"
)

// Dispatcher is the dispatch surface served over HTTP.
type Dispatcher interface {
	Location() *time.Location
	ValidateAssignment(ctx context.Context, driverID, blockID string) (models.ComplianceResult, error)
	CreateAssignment(ctx context.Context, req dispatch.CreateRequest) (dispatch.Outcome, error)
	Unassign(ctx context.Context, assignmentID string) (models.Assignment, error)
	WeeklyWorkload(ctx context.Context, driverID string, date time.Time) (models.WorkloadSummary, error)
	DriverHistory(ctx context.Context, driverID string, weekStart time.Time) (dispatch.HistoryReport, error)
	SwapCandidates(ctx context.Context, blockID string) (*ranking.Ranking, error)
	ScoreMatch(ctx context.Context, driverID, blockID string, weekStart time.Time) (dispatch.MatchReport, error)
	SlotOwners(ctx context.Context, weekStart time.Time) ([]matching.SlotOwnership, error)
	FillWeek(ctx context.Context, weekStart time.Time, minDays int) (*matching.FillPlan, error)
}

// API exposes HTTP handlers.
type API struct {
	svc    Dispatcher
	logger zerolog.Logger
	now    func() time.Time
}

// New creates the API router wrapper.
func New(svc Dispatcher, logger zerolog.Logger) *API {
	return &API{
		svc:    svc,
		logger: logger.With().Str("component", "api").Logger(),
		now:    time.Now,
	}
}

// Routes mounts the v1 API on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/assignments", func(r chi.Router) {
			r.Post("/", a.handleAssignmentCreate)
			r.Post("/validate", a.handleAssignmentValidate)
			r.Delete("/{assignmentID}", a.handleAssignmentDelete)
		})

		r.Route("/drivers/{driverID}", func(r chi.Router) {
			r.Get("/workload", a.handleDriverWorkload)
			r.Get("/history", a.handleDriverHistory)
		})

		r.Route("/blocks/{blockID}", func(r chi.Router) {
			r.Get("/candidates", a.handleBlockCandidates)
			r.Get("/match/{driverID}", a.handleBlockMatch)
		})

		r.Get("/slots/owners", a.handleSlotOwners)
		r.Get("/schedule/fill", a.handleScheduleFill)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps dispatch and engine errors onto HTTP statuses.
// Data integrity failures (unknown tractor, block without times) are 422
// since retrying cannot succeed until the data is fixed.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, dispatch.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, store.ErrBlockAlreadyAssigned):
		writeError(w, http.StatusConflict, "block_already_assigned")
	case errors.Is(err, store.ErrNotActive):
		writeError(w, http.StatusConflict, "assignment_not_active")
	case errors.Is(err, dispatch.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "assignment_busy")
	case errors.Is(err, contracts.ErrNoCanonicalTime),
		errors.Is(err, compliance.ErrInvalidInput),
		errors.Is(err, ranking.ErrInvalidSnapshot),
		errors.Is(err, matching.ErrMissingBlock),
		errors.Is(err, workload.ErrMissingBlock),
		errors.Is(err, timewindow.ErrInvalidDate):
		a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("data integrity error")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "data_integrity", "detail": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_cancelled")
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// dateParam parses a YYYY-MM-DD query parameter in the tenant calendar,
// returning fallback when it is absent.
func (a *API) dateParam(r *http.Request, name string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	t, err := timewindow.ParseDate(raw, a.svc.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
