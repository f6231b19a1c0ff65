/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package workload summarizes how much a driver works in a calendar week.
package workload

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// Day thresholds for workload levels.
const (
	IdealDays    = 4
	WarningDays  = 5
	CriticalDays = 6
)

// ErrMissingBlock indicates an assignment passed without its block.
var ErrMissingBlock = errors.New("assignment has no block loaded")

// Classify maps days worked in a week to a workload level.
func Classify(daysWorked int) models.WorkloadLevel {
	switch {
	case daysWorked >= CriticalDays:
		return models.WorkloadCritical
	case daysWorked == WarningDays:
		return models.WorkloadWarning
	case daysWorked == IdealDays:
		return models.WorkloadIdeal
	default:
		return models.WorkloadUnderutilized
	}
}

// GetWeeklyWorkload computes the driver's days and hours for the
// Sunday-Saturday week containing weekDate. Week membership is decided by
// block start timestamp in loc, not by service date.
func GetWeeklyWorkload(driverID string, weekDate time.Time, assignments []models.Assignment, loc *time.Location) (models.WorkloadSummary, error) {
	start, end := timewindow.WeekBounds(weekDate, loc)
	summary := models.WorkloadSummary{
		DriverID:  driverID,
		WeekStart: start,
		WeekEnd:   end,
	}

	dates := make(map[string]struct{}, 7)
	var hours float64
	for _, a := range assignments {
		if !a.IsActive || a.DriverID != driverID {
			continue
		}
		if a.Block == nil {
			return models.WorkloadSummary{}, fmt.Errorf("%w: %s", ErrMissingBlock, a.ID)
		}
		if !timewindow.InWeek(a.Block.StartTimestamp, start) {
			continue
		}
		dates[timewindow.DateKey(a.Block.StartTimestamp, loc)] = struct{}{}
		hours += a.Block.Hours()
	}

	summary.DaysWorked = len(dates)
	summary.TotalHours = math.Round(hours*100) / 100
	summary.Level = Classify(summary.DaysWorked)
	return summary, nil
}

// Summaries computes GetWeeklyWorkload for every driver in driverIDs.
func Summaries(driverIDs []string, weekDate time.Time, assignments []models.Assignment, loc *time.Location) (map[string]models.WorkloadSummary, error) {
	byDriver := make(map[string][]models.Assignment, len(driverIDs))
	for _, a := range assignments {
		byDriver[a.DriverID] = append(byDriver[a.DriverID], a)
	}
	out := make(map[string]models.WorkloadSummary, len(driverIDs))
	for _, id := range driverIDs {
		s, err := GetWeeklyWorkload(id, weekDate, byDriver[id], loc)
		if err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, nil
}
