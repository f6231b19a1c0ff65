/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/haulroster/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Driver{},
		&models.Block{},
		&models.Assignment{},
		&models.ProtectedDriverRule{},
	); err != nil {
		return err
	}

	if err := applyActiveAssignmentGuard(database); err != nil {
		return err
	}

	return nil
}

// applyActiveAssignmentGuard enforces at most one active assignment per block
// with a partial unique index. MySQL has no partial indexes; there the
// application-level check in the store is the only guard.
func applyActiveAssignmentGuard(database *gorm.DB) error {
	var stmt string
	switch database.Dialector.Name() {
	case "postgres":
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS ux_assignments_active_block ON assignments (block_id) WHERE is_active`
	case "sqlite":
		stmt = `CREATE UNIQUE INDEX IF NOT EXISTS ux_assignments_active_block ON assignments (block_id) WHERE is_active = 1`
	default:
		return nil
	}

	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply active assignment guard: %w", err)
	}
	return nil
}
