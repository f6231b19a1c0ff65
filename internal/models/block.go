/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Block is a schedulable unit of driving work tied to a tractor and a
// calendar date. Blocks are immutable once imported.
type Block struct {
	ID             string       `gorm:"type:varchar(36);primaryKey" json:"id" yaml:"id"`
	ExternalID     string       `gorm:"type:varchar(64);index" json:"external_id,omitempty" yaml:"external_id,omitempty"`
	ServiceDate    string       `gorm:"type:varchar(10);not null;index" json:"service_date" yaml:"service_date"` // YYYY-MM-DD in the tenant calendar
	StartTimestamp time.Time    `gorm:"not null;index" json:"start_timestamp" yaml:"start_timestamp"`
	EndTimestamp   time.Time    `gorm:"not null" json:"end_timestamp" yaml:"end_timestamp"`
	Duration       float64      `json:"duration" yaml:"duration"` // hours
	SoloType       ContractType `gorm:"type:varchar(16);not null;index" json:"solo_type" yaml:"solo_type"`
	TractorID      string       `gorm:"type:varchar(32);not null" json:"tractor_id" yaml:"tractor_id"`
	CreatedAt      time.Time    `json:"created_at" yaml:"-"`
}

// TableName sets the table name.
func (Block) TableName() string {
	return "blocks"
}

// Hours returns the block duration in hours, falling back to the span
// between start and end when Duration was not recorded.
func (b Block) Hours() float64 {
	if b.Duration > 0 {
		return b.Duration
	}
	return b.EndTimestamp.Sub(b.StartTimestamp).Hours()
}
