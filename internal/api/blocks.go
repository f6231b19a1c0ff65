/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleBlockCandidates(w http.ResponseWriter, r *http.Request) {
	rk, err := a.svc.SwapCandidates(r.Context(), chi.URLParam(r, "blockID"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"block_id":      rk.BlockID,
		"pool_size":     rk.PoolSize,
		"pool_empty":    rk.PoolEmpty(),
		"no_candidates": rk.PoolSize > 0 && len(rk.Candidates) == 0,
		"candidates":    rk.Candidates,
		"excluded":      rk.Excluded,
	})
}

func (a *API) handleBlockMatch(w http.ResponseWriter, r *http.Request) {
	// A zero week start scores against the week containing the block.
	weekStart, ok := a.dateParam(r, "week_start", time.Time{})
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	rep, err := a.svc.ScoreMatch(r.Context(), chi.URLParam(r, "driverID"), chi.URLParam(r, "blockID"), weekStart)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleSlotOwners(w http.ResponseWriter, r *http.Request) {
	weekStart, ok := a.dateParam(r, "week_start", a.now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	owners, err := a.svc.SlotOwners(r.Context(), weekStart)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owners": owners})
}
