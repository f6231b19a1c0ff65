/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/haulroster/internal/models"
	"github.com/google/uuid"
)

// Memory is an in-process repository over a Snapshot.
type Memory struct {
	mu          sync.RWMutex
	drivers     map[string]models.Driver
	blocks      map[string]models.Block
	assignments []models.Assignment
	rules       []models.ProtectedDriverRule
}

// NewMemory indexes snap. The snapshot is copied.
func NewMemory(snap *Snapshot) (*Memory, error) {
	if snap == nil {
		snap = &Snapshot{}
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		drivers:     make(map[string]models.Driver, len(snap.Drivers)),
		blocks:      make(map[string]models.Block, len(snap.Blocks)),
		assignments: append([]models.Assignment(nil), snap.Assignments...),
		rules:       append([]models.ProtectedDriverRule(nil), snap.Rules...),
	}
	for _, d := range snap.Drivers {
		m.drivers[d.ID] = d
	}
	for _, b := range snap.Blocks {
		m.blocks[b.ID] = b
	}
	return m, nil
}

func (m *Memory) withBlock(a models.Assignment) models.Assignment {
	if b, ok := m.blocks[a.BlockID]; ok {
		a.Block = &b
	}
	return a
}

// Driver loads one driver.
func (m *Memory) Driver(_ context.Context, id string) (models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return models.Driver{}, fmt.Errorf("driver %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// Drivers lists every driver ordered by name then ID.
func (m *Memory) Drivers(_ context.Context) ([]models.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Block loads one block.
func (m *Memory) Block(_ context.Context, id string) (models.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return models.Block{}, fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	return b, nil
}

// Blocks lists blocks starting in [from, to) ordered by start then ID.
func (m *Memory) Blocks(_ context.Context, from, to time.Time) ([]models.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Block
	for _, b := range m.blocks {
		if b.StartTimestamp.Before(from) || !b.StartTimestamp.Before(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTimestamp.Equal(out[j].StartTimestamp) {
			return out[i].StartTimestamp.Before(out[j].StartTimestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Assignment loads one assignment with its block.
func (m *Memory) Assignment(_ context.Context, id string) (models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.ID == id {
			return m.withBlock(a), nil
		}
	}
	return models.Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
}

// ActiveAssignments lists active assignments matching f ordered by block start.
func (m *Memory) ActiveAssignments(_ context.Context, f AssignmentFilter) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Assignment
	for _, a := range m.assignments {
		if !a.IsActive {
			continue
		}
		b, ok := m.blocks[a.BlockID]
		if !ok || !f.matches(a.DriverID, b.StartTimestamp) {
			continue
		}
		out = append(out, m.withBlock(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Block.StartTimestamp.Before(out[j].Block.StartTimestamp)
	})
	return out, nil
}

// ActiveRules lists every active protected rule.
func (m *Memory) ActiveRules(_ context.Context) ([]models.ProtectedDriverRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ProtectedDriverRule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateAssignment inserts a as the block's only active assignment.
func (m *Memory) CreateAssignment(_ context.Context, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[a.BlockID]
	if !ok {
		return fmt.Errorf("block %s: %w", a.BlockID, ErrNotFound)
	}
	for _, existing := range m.assignments {
		if existing.IsActive && existing.BlockID == a.BlockID {
			return ErrBlockAlreadyAssigned
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsActive = true
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	row := *a
	row.Block = nil
	m.assignments = append(m.assignments, row)
	a.Block = &b
	return nil
}

// Unassign deactivates an assignment and returns its final state.
func (m *Memory) Unassign(_ context.Context, id string, at time.Time) (models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assignments {
		if m.assignments[i].ID != id {
			continue
		}
		if !m.assignments[i].IsActive {
			return models.Assignment{}, ErrNotActive
		}
		when := at.UTC()
		m.assignments[i].IsActive = false
		m.assignments[i].UnassignedAt = &when
		return m.withBlock(m.assignments[i]), nil
	}
	return models.Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
}
