/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ValidationStatus is the tri-state compliance outcome.
type ValidationStatus string

const (
	ValidationValid     ValidationStatus = "valid"
	ValidationWarning   ValidationStatus = "warning"
	ValidationViolation ValidationStatus = "violation"
)

// Severity orders statuses: valid < warning < violation.
func (s ValidationStatus) Severity() int {
	switch s {
	case ValidationWarning:
		return 1
	case ValidationViolation:
		return 2
	default:
		return 0
	}
}

// Worse returns the more severe of s and other.
func (s ValidationStatus) Worse(other ValidationStatus) ValidationStatus {
	if other.Severity() > s.Severity() {
		return other
	}
	if s == "" {
		return ValidationValid
	}
	return s
}

// Assignment links one block to one driver.
//
// ValidationStatus and ValidationSummary are captured when the assignment is
// created and are not recomputed when later assignments change the driver's
// duty history.
type Assignment struct {
	ID                string           `gorm:"type:varchar(36);primaryKey" json:"id" yaml:"id"`
	BlockID           string           `gorm:"type:varchar(36);not null;index" json:"block_id" yaml:"block_id"`
	DriverID          string           `gorm:"type:varchar(36);not null;index" json:"driver_id" yaml:"driver_id"`
	IsActive          bool             `gorm:"not null;index" json:"is_active" yaml:"is_active"`
	AssignedAt        time.Time        `json:"assigned_at" yaml:"assigned_at"`
	UnassignedAt      *time.Time       `json:"unassigned_at,omitempty" yaml:"-"`
	ValidationStatus  ValidationStatus `gorm:"type:varchar(16)" json:"validation_status" yaml:"validation_status,omitempty"`
	ValidationSummary map[string]any   `gorm:"serializer:json" json:"validation_summary,omitempty" yaml:"-"`
	Notes             string           `gorm:"type:text" json:"notes,omitempty" yaml:"notes,omitempty"`

	Block *Block `gorm:"foreignKey:BlockID" json:"block,omitempty" yaml:"-"`
}

// TableName sets the table name.
func (Assignment) TableName() string {
	return "assignments"
}
