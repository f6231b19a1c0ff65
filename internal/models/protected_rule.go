/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ProtectedRuleType identifies the restriction a protected driver rule applies.
type ProtectedRuleType string

const (
	// ProtectedRuleBlockedDays forbids work on the listed weekdays.
	ProtectedRuleBlockedDays ProtectedRuleType = "blocked_days"
	// ProtectedRuleAllowedSoloTypes limits the driver to the listed contract types.
	ProtectedRuleAllowedSoloTypes ProtectedRuleType = "allowed_solo_types"
	// ProtectedRuleMaxDaysPerWeek caps distinct worked dates in a calendar week.
	ProtectedRuleMaxDaysPerWeek ProtectedRuleType = "max_days_per_week"
	// ProtectedRuleExclusiveSlot reserves a (solo type, tractor, weekday) slot for the driver.
	ProtectedRuleExclusiveSlot ProtectedRuleType = "exclusive_slot"
)

// Valid reports whether t is a known rule type.
func (t ProtectedRuleType) Valid() bool {
	switch t {
	case ProtectedRuleBlockedDays, ProtectedRuleAllowedSoloTypes, ProtectedRuleMaxDaysPerWeek, ProtectedRuleExclusiveSlot:
		return true
	}
	return false
}

// ProtectedDriverRule ties a driver to a restriction that dispatch must honor.
type ProtectedDriverRule struct {
	ID       string            `gorm:"type:varchar(36);primaryKey" json:"id" yaml:"id"`
	DriverID string            `gorm:"type:varchar(36);not null;index" json:"driver_id" yaml:"driver_id"`
	RuleType ProtectedRuleType `gorm:"type:varchar(32);not null" json:"rule_type" yaml:"rule_type"`
	Active   bool              `gorm:"not null;index" json:"active" yaml:"active"`

	// Hard rules remove the driver from swap rankings when broken instead of
	// only adding a violation message.
	Hard bool `json:"hard" yaml:"hard"`

	BlockedDays      []string       `gorm:"serializer:json" json:"blocked_days,omitempty" yaml:"blocked_days,omitempty"`
	AllowedSoloTypes []ContractType `gorm:"serializer:json" json:"allowed_solo_types,omitempty" yaml:"allowed_solo_types,omitempty"`
	MaxDaysPerWeek   int            `json:"max_days_per_week,omitempty" yaml:"max_days_per_week,omitempty"`

	// Exclusive slot claim.
	SlotSoloType  ContractType `gorm:"type:varchar(16)" json:"slot_solo_type,omitempty" yaml:"slot_solo_type,omitempty"`
	SlotTractorID string       `gorm:"type:varchar(32)" json:"slot_tractor_id,omitempty" yaml:"slot_tractor_id,omitempty"`
	SlotWeekday   string       `gorm:"type:varchar(16)" json:"slot_weekday,omitempty" yaml:"slot_weekday,omitempty"`

	// Optional YYYY-MM-DD bounds, inclusive.
	EffectiveFrom string `gorm:"type:varchar(10)" json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo   string `gorm:"type:varchar(10)" json:"effective_to,omitempty" yaml:"effective_to,omitempty"`

	Notes     string    `gorm:"type:text" json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// TableName sets the table name.
func (ProtectedDriverRule) TableName() string {
	return "protected_driver_rules"
}

// AppliesOn reports whether the rule is active and effective on serviceDate.
// Dates compare lexically in YYYY-MM-DD form.
func (r ProtectedDriverRule) AppliesOn(serviceDate string) bool {
	if !r.Active {
		return false
	}
	if r.EffectiveFrom != "" && serviceDate < r.EffectiveFrom {
		return false
	}
	if r.EffectiveTo != "" && serviceDate > r.EffectiveTo {
		return false
	}
	return true
}
