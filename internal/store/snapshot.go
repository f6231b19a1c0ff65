/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"fmt"
	"os"

	"github.com/friendsincode/haulroster/internal/models"
	"gopkg.in/yaml.v3"
)

// Snapshot is a complete data set for offline runs and imports.
type Snapshot struct {
	Drivers     []models.Driver              `yaml:"drivers"`
	Blocks      []models.Block               `yaml:"blocks"`
	Assignments []models.Assignment          `yaml:"assignments"`
	Rules       []models.ProtectedDriverRule `yaml:"rules"`
}

// LoadSnapshotFile reads a YAML snapshot.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes and validates a YAML snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks referential integrity and the one-active-per-block rule.
func (s *Snapshot) Validate() error {
	drivers := make(map[string]bool, len(s.Drivers))
	for _, d := range s.Drivers {
		if d.ID == "" {
			return fmt.Errorf("snapshot: driver without id")
		}
		if drivers[d.ID] {
			return fmt.Errorf("snapshot: duplicate driver %s", d.ID)
		}
		drivers[d.ID] = true
	}

	blocks := make(map[string]bool, len(s.Blocks))
	for _, b := range s.Blocks {
		if b.ID == "" {
			return fmt.Errorf("snapshot: block without id")
		}
		if blocks[b.ID] {
			return fmt.Errorf("snapshot: duplicate block %s", b.ID)
		}
		if !b.EndTimestamp.After(b.StartTimestamp) {
			return fmt.Errorf("snapshot: block %s ends before it starts", b.ID)
		}
		blocks[b.ID] = true
	}

	active := make(map[string]string)
	seen := make(map[string]bool, len(s.Assignments))
	for _, a := range s.Assignments {
		if a.ID == "" {
			return fmt.Errorf("snapshot: assignment without id")
		}
		if seen[a.ID] {
			return fmt.Errorf("snapshot: duplicate assignment %s", a.ID)
		}
		seen[a.ID] = true
		if !drivers[a.DriverID] {
			return fmt.Errorf("snapshot: assignment %s references unknown driver %s", a.ID, a.DriverID)
		}
		if !blocks[a.BlockID] {
			return fmt.Errorf("snapshot: assignment %s references unknown block %s", a.ID, a.BlockID)
		}
		if a.IsActive {
			if other, ok := active[a.BlockID]; ok {
				return fmt.Errorf("snapshot: block %s has active assignments %s and %s: %w", a.BlockID, other, a.ID, ErrBlockAlreadyAssigned)
			}
			active[a.BlockID] = a.ID
		}
	}

	for _, r := range s.Rules {
		if !drivers[r.DriverID] {
			return fmt.Errorf("snapshot: rule %s references unknown driver %s", r.ID, r.DriverID)
		}
		if !r.RuleType.Valid() {
			return fmt.Errorf("snapshot: rule %s has unknown type %q", r.ID, r.RuleType)
		}
	}
	return nil
}
