/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ComplianceRule names the duty-hour or override rule behind a finding.
type ComplianceRule string

const (
	RuleRest10Hour      ComplianceRule = "rest_10_hour"
	RuleConsecutiveDays ComplianceRule = "consecutive_days"
	RuleRestart34Hour   ComplianceRule = "restart_34_hour"
	RuleOneBlockPerDate ComplianceRule = "one_block_per_date"
	RuleProtectedDriver ComplianceRule = "protected_driver_rule"
)

// ComplianceFinding is one rule that fired during validation.
type ComplianceFinding struct {
	Rule     ComplianceRule   `json:"rule"`
	Severity ValidationStatus `json:"severity"`
	Message  string           `json:"message"`
	// Hard is set for protected rules that exclude the driver outright.
	Hard bool `json:"hard,omitempty"`
}

// ComplianceResult is the outcome of validating one driver against one block.
// It is derived per query and never persisted as ground truth.
type ComplianceResult struct {
	Status         ValidationStatus    `json:"status"`
	HoursRemaining float64             `json:"hours_remaining"`
	Metrics        map[string]float64  `json:"metrics"`
	Messages       []string            `json:"messages"`
	Findings       []ComplianceFinding `json:"findings"`
}

// HardExcluded reports whether a hard protected rule was broken.
func (r ComplianceResult) HardExcluded() bool {
	for _, f := range r.Findings {
		if f.Hard && f.Severity == ValidationViolation {
			return true
		}
	}
	return false
}

// Summary renders the result as the point-in-time validation summary stored
// on an Assignment.
func (r ComplianceResult) Summary(checkedAt time.Time) map[string]any {
	metrics := make(map[string]any, len(r.Metrics))
	for k, v := range r.Metrics {
		metrics[k] = v
	}
	messages := make([]any, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, m)
	}
	return map[string]any{
		"status":          string(r.Status),
		"hours_remaining": r.HoursRemaining,
		"metrics":         metrics,
		"messages":        messages,
		"checked_at":      checkedAt.UTC().Format(time.RFC3339),
	}
}

// WorkloadLevel classifies days worked in one calendar week.
type WorkloadLevel string

const (
	WorkloadUnderutilized WorkloadLevel = "underutilized"
	WorkloadIdeal         WorkloadLevel = "ideal"
	WorkloadWarning       WorkloadLevel = "warning"
	WorkloadCritical      WorkloadLevel = "critical"
)

// Rank orders levels from least to most utilized.
func (l WorkloadLevel) Rank() int {
	switch l {
	case WorkloadIdeal:
		return 1
	case WorkloadWarning:
		return 2
	case WorkloadCritical:
		return 3
	default:
		return 0
	}
}

// WorkloadSummary is a driver's days and hours for one Sunday-Saturday week.
type WorkloadSummary struct {
	DriverID   string        `json:"driver_id"`
	WeekStart  time.Time     `json:"week_start"`
	WeekEnd    time.Time     `json:"week_end"` // exclusive
	DaysWorked int           `json:"days_worked"`
	TotalHours float64       `json:"total_hours"`
	Level      WorkloadLevel `json:"workload_level"`
}
