/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
)

// handleScheduleFill proposes drivers for the week's open blocks. The plan
// is not persisted.
func (a *API) handleScheduleFill(w http.ResponseWriter, r *http.Request) {
	weekStart, ok := a.dateParam(r, "week_start", a.now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	minDays := 0
	if raw := r.URL.Query().Get("min_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_min_days")
			return
		}
		minDays = n
	}

	plan, err := a.svc.FillWeek(r.Context(), weekStart, minDays)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
