/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleDriverWorkload(w http.ResponseWriter, r *http.Request) {
	date, ok := a.dateParam(r, "date", a.now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	ws, err := a.svc.WeeklyWorkload(r.Context(), chi.URLParam(r, "driverID"), date)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (a *API) handleDriverHistory(w http.ResponseWriter, r *http.Request) {
	weekStart, ok := a.dateParam(r, "week_start", a.now())
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	rep, err := a.svc.DriverHistory(r.Context(), chi.URLParam(r, "driverID"), weekStart)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
