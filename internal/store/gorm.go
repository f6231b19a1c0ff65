/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/haulroster/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm-backed repository.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New wraps an open database.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "store").Logger()}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}

// Driver loads one driver.
func (s *Store) Driver(ctx context.Context, id string) (models.Driver, error) {
	var d models.Driver
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return models.Driver{}, notFound(err, "driver", id)
	}
	return d, nil
}

// Drivers lists every driver ordered by name then ID.
func (s *Store) Drivers(ctx context.Context) ([]models.Driver, error) {
	var out []models.Driver
	if err := s.db.WithContext(ctx).Order("name, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return out, nil
}

// Block loads one block.
func (s *Store) Block(ctx context.Context, id string) (models.Block, error) {
	var b models.Block
	if err := s.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return models.Block{}, notFound(err, "block", id)
	}
	return b, nil
}

// Blocks lists blocks starting in [from, to) ordered by start then ID.
func (s *Store) Blocks(ctx context.Context, from, to time.Time) ([]models.Block, error) {
	var out []models.Block
	err := s.db.WithContext(ctx).
		Where("start_timestamp >= ? AND start_timestamp < ?", from.UTC(), to.UTC()).
		Order("start_timestamp, id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return out, nil
}

// Assignment loads one assignment with its block.
func (s *Store) Assignment(ctx context.Context, id string) (models.Assignment, error) {
	var a models.Assignment
	if err := s.db.WithContext(ctx).Preload("Block").First(&a, "id = ?", id).Error; err != nil {
		return models.Assignment{}, notFound(err, "assignment", id)
	}
	return a, nil
}

// ActiveAssignments lists active assignments matching f with blocks loaded,
// ordered by block start.
func (s *Store) ActiveAssignments(ctx context.Context, f AssignmentFilter) ([]models.Assignment, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Joins("JOIN blocks ON blocks.id = assignments.block_id").
		Where("assignments.is_active = ?", true).
		Preload("Block")
	if f.DriverID != "" {
		q = q.Where("assignments.driver_id = ?", f.DriverID)
	}
	if !f.From.IsZero() {
		q = q.Where("blocks.start_timestamp >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("blocks.start_timestamp < ?", f.To.UTC())
	}

	var out []models.Assignment
	if err := q.Order("blocks.start_timestamp, assignments.id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return out, nil
}

// ActiveRules lists every active protected rule.
func (s *Store) ActiveRules(ctx context.Context) ([]models.ProtectedDriverRule, error) {
	var out []models.ProtectedDriverRule
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("driver_id, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list protected rules: %w", err)
	}
	return out, nil
}

// CreateAssignment inserts a as the block's only active assignment.
func (s *Store) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.IsActive = true
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var block models.Block
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&block, "id = ?", a.BlockID).Error; err != nil {
			return notFound(err, "block", a.BlockID)
		}

		var active int64
		if err := tx.Model(&models.Assignment{}).
			Where("block_id = ? AND is_active = ?", a.BlockID, true).
			Count(&active).Error; err != nil {
			return fmt.Errorf("check active assignment: %w", err)
		}
		if active > 0 {
			return ErrBlockAlreadyAssigned
		}

		a.Block = nil
		if err := tx.Create(a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrBlockAlreadyAssigned
			}
			return fmt.Errorf("insert assignment: %w", err)
		}
		a.Block = &block
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("assignment_id", a.ID).Str("block_id", a.BlockID).Str("driver_id", a.DriverID).Msg("assignment created")
	return nil
}

// Unassign deactivates an assignment and returns its final state.
func (s *Store) Unassign(ctx context.Context, id string, at time.Time) (models.Assignment, error) {
	var a models.Assignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Block").First(&a, "id = ?", id).Error; err != nil {
			return notFound(err, "assignment", id)
		}
		if !a.IsActive {
			return ErrNotActive
		}
		when := at.UTC()
		if err := tx.Model(&models.Assignment{}).Where("id = ?", id).Updates(map[string]any{
			"is_active":     false,
			"unassigned_at": when,
		}).Error; err != nil {
			return fmt.Errorf("deactivate assignment: %w", err)
		}
		a.IsActive = false
		a.UnassignedAt = &when
		return nil
	})
	if err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

// Import upserts a snapshot. Assignments are inserted as given, so an
// import may restore inactive history alongside active work.
func (s *Store) Import(ctx context.Context, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	upsert := clause.OnConflict{UpdateAll: true}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(snap.Drivers) > 0 {
			if err := tx.Clauses(upsert).Create(&snap.Drivers).Error; err != nil {
				return fmt.Errorf("import drivers: %w", err)
			}
		}
		if len(snap.Blocks) > 0 {
			blocks := make([]models.Block, len(snap.Blocks))
			for i, b := range snap.Blocks {
				b.StartTimestamp = b.StartTimestamp.UTC()
				b.EndTimestamp = b.EndTimestamp.UTC()
				blocks[i] = b
			}
			if err := tx.Clauses(upsert).Create(&blocks).Error; err != nil {
				return fmt.Errorf("import blocks: %w", err)
			}
		}
		if len(snap.Rules) > 0 {
			if err := tx.Clauses(upsert).Create(&snap.Rules).Error; err != nil {
				return fmt.Errorf("import rules: %w", err)
			}
		}
		if len(snap.Assignments) > 0 {
			rows := make([]models.Assignment, len(snap.Assignments))
			for i, a := range snap.Assignments {
				a.Block = nil
				if a.AssignedAt.IsZero() {
					a.AssignedAt = time.Now().UTC()
				}
				rows[i] = a
			}
			if err := tx.Clauses(upsert).Create(&rows).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrBlockAlreadyAssigned
				}
				return fmt.Errorf("import assignments: %w", err)
			}
		}
		return nil
	})
}
