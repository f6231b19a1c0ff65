/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/haulroster/internal/db"
	"github.com/friendsincode/haulroster/internal/store"
)

var importSnapshotPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load drivers, blocks, assignments and rules from a YAML snapshot",
	Long: `Import upserts every record of a snapshot into the configured database.

The snapshot is validated first: every assignment must reference a known
driver and block, and no block may carry more than one active assignment.

Example:
  haulroster import --snapshot roster.yaml
`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importSnapshotPath, "snapshot", "", "Path to YAML snapshot (required)")
	_ = importCmd.MarkFlagRequired("snapshot")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return err
	}
	logger.Info().Str("backend", string(cfg.DBBackend)).Msg("schema up to date")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	snap, err := store.LoadSnapshotFile(importSnapshotPath)
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := store.New(database, logger).Import(cmd.Context(), snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}

	logger.Info().
		Int("drivers", len(snap.Drivers)).
		Int("blocks", len(snap.Blocks)).
		Int("assignments", len(snap.Assignments)).
		Int("rules", len(snap.Rules)).
		Msg("snapshot imported")
	return nil
}
