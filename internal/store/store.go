/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store persists drivers, blocks, assignments and protected rules.
// Store is backed by gorm; Memory serves offline runs over a Snapshot.
package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBlockAlreadyAssigned is returned when a block already has an
	// active assignment.
	ErrBlockAlreadyAssigned = errors.New("block already has an active assignment")

	// ErrNotActive is returned when unassigning an inactive assignment.
	ErrNotActive = errors.New("assignment is not active")
)

// AssignmentFilter selects active assignments whose block starts in
// [From, To). An empty DriverID selects every driver.
type AssignmentFilter struct {
	DriverID string
	From     time.Time
	To       time.Time
}

func (f AssignmentFilter) matches(driverID string, start time.Time) bool {
	if f.DriverID != "" && driverID != f.DriverID {
		return false
	}
	if !f.From.IsZero() && start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !start.Before(f.To) {
		return false
	}
	return true
}
