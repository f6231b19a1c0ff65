/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/haulroster/internal/dispatch"
)

type validateRequest struct {
	DriverID string `json:"driver_id"`
	BlockID  string `json:"block_id"`
}

func (a *API) handleAssignmentValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	res, err := a.svc.ValidateAssignment(r.Context(), req.DriverID, req.BlockID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAssignmentCreate(w http.ResponseWriter, r *http.Request) {
	var req dispatch.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	out, err := a.svc.CreateAssignment(r.Context(), req)
	if errors.Is(err, dispatch.ErrComplianceViolation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "compliance_violation",
			"compliance": out.Compliance,
		})
		return
	}
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) handleAssignmentDelete(w http.ResponseWriter, r *http.Request) {
	asg, err := a.svc.Unassign(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asg)
}
