/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// DriverStatus is the lifecycle state of a driver record.
type DriverStatus string

const (
	DriverStatusActive   DriverStatus = "active"
	DriverStatusInactive DriverStatus = "inactive"
	DriverStatusOnLeave  DriverStatus = "on_leave"
)

// ContractType tags which blocks a driver (or a block) belongs to.
type ContractType string

const (
	ContractSolo1 ContractType = "solo1"
	ContractSolo2 ContractType = "solo2"
	ContractTeam  ContractType = "team"
)

// Valid reports whether c is a known contract type.
func (c ContractType) Valid() bool {
	switch c {
	case ContractSolo1, ContractSolo2, ContractTeam:
		return true
	}
	return false
}

// DriverPreferences holds the scheduling preferences an admin recorded for a
// driver. Day and time strings are kept as entered; they are parsed (and
// reported when malformed) by the matching package.
type DriverPreferences struct {
	MinDays        int      `json:"min_days,omitempty" yaml:"min_days,omitempty"`
	MaxDays        int      `json:"max_days,omitempty" yaml:"max_days,omitempty"`
	AllowedDays    []string `json:"allowed_days,omitempty" yaml:"allowed_days,omitempty"`       // weekday names, e.g. "monday" or "Mon"
	PreferredTimes []string `json:"preferred_times,omitempty" yaml:"preferred_times,omitempty"` // 24h "HH:MM"
	Notes          string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// IsEmpty reports whether no day or time preference was stated.
func (p *DriverPreferences) IsEmpty() bool {
	return p == nil || (len(p.AllowedDays) == 0 && len(p.PreferredTimes) == 0)
}

// Driver is a fleet driver.
type Driver struct {
	ID           string             `gorm:"type:varchar(36);primaryKey" json:"id" yaml:"id"`
	Name         string             `gorm:"type:varchar(255);not null" json:"name" yaml:"name"`
	Status       DriverStatus       `gorm:"type:varchar(16);not null;index" json:"status" yaml:"status"`
	ContractType ContractType       `gorm:"type:varchar(16);index" json:"contract_type" yaml:"contract_type"`
	Preferences  *DriverPreferences `gorm:"serializer:json" json:"preferences,omitempty" yaml:"preferences,omitempty"`
	CreatedAt    time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time          `json:"updated_at" yaml:"-"`
}

// TableName sets the table name.
func (Driver) TableName() string {
	return "drivers"
}

// IsActive reports whether the driver may receive work.
func (d Driver) IsActive() bool {
	return d.Status == DriverStatusActive
}
