/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/dispatch"
	"github.com/friendsincode/haulroster/internal/logging"
	"github.com/friendsincode/haulroster/internal/store"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// Offline engine flags
var (
	engineSnapshot       string
	engineTimezone       string
	engineCanonicalTimes string
	engineDriver         string
	engineBlock          string
	engineDate           string
	engineMinDays        int
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Run compliance and ranking queries against a YAML snapshot",
	Long: `Engine commands answer dispatch questions offline, without a database.

Examples:
  haulroster engine validate --snapshot roster.yaml --driver d1 --block b42
  haulroster engine rank --snapshot roster.yaml --block b42
  haulroster engine workload --snapshot roster.yaml --driver d1 --date 2025-03-31
  haulroster engine fill --snapshot roster.yaml --date 2025-03-30 --min-days 4
`,
}

var engineValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check whether a driver may legally take a block",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := offlineService()
		if err != nil {
			return err
		}
		res, err := svc.ValidateAssignment(cmd.Context(), engineDriver, engineBlock)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var engineRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank swap candidates for a block",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := offlineService()
		if err != nil {
			return err
		}
		res, err := svc.SwapCandidates(cmd.Context(), engineBlock)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var engineWorkloadCmd = &cobra.Command{
	Use:   "workload",
	Short: "Summarize a driver's week",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := offlineService()
		if err != nil {
			return err
		}
		date, err := engineDateOr(svc.Location(), time.Now())
		if err != nil {
			return err
		}
		res, err := svc.WeeklyWorkload(cmd.Context(), engineDriver, date)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var engineMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score how well a block fits a driver's history",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := offlineService()
		if err != nil {
			return err
		}
		week, err := engineDateOr(svc.Location(), time.Time{})
		if err != nil {
			return err
		}
		res, err := svc.ScoreMatch(cmd.Context(), engineDriver, engineBlock, week)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var engineOwnersCmd = &cobra.Command{
	Use:   "owners",
	Short: "List the established owner of each slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := offlineService()
		if err != nil {
			return err
		}
		week, err := engineDateOr(svc.Location(), time.Now())
		if err != nil {
			return err
		}
		res, err := svc.SlotOwners(cmd.Context(), week)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var engineFillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Propose drivers for a week's open blocks from slot history",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := offlineService()
		if err != nil {
			return err
		}
		week, err := engineDateOr(svc.Location(), time.Now())
		if err != nil {
			return err
		}
		res, err := svc.FillWeek(cmd.Context(), week, engineMinDays)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	pf := engineCmd.PersistentFlags()
	pf.StringVar(&engineSnapshot, "snapshot", "", "Path to YAML snapshot (required)")
	pf.StringVar(&engineTimezone, "timezone", "America/Chicago", "Tenant timezone for weeks and service dates")
	pf.StringVar(&engineCanonicalTimes, "canonical-times", "", "Optional YAML override for canonical start times")
	_ = engineCmd.MarkPersistentFlagRequired("snapshot")

	engineValidateCmd.Flags().StringVar(&engineDriver, "driver", "", "Driver ID (required)")
	engineValidateCmd.Flags().StringVar(&engineBlock, "block", "", "Block ID (required)")
	_ = engineValidateCmd.MarkFlagRequired("driver")
	_ = engineValidateCmd.MarkFlagRequired("block")

	engineRankCmd.Flags().StringVar(&engineBlock, "block", "", "Block ID (required)")
	_ = engineRankCmd.MarkFlagRequired("block")

	engineWorkloadCmd.Flags().StringVar(&engineDriver, "driver", "", "Driver ID (required)")
	engineWorkloadCmd.Flags().StringVar(&engineDate, "date", "", "Any date in the week, YYYY-MM-DD (default today)")
	_ = engineWorkloadCmd.MarkFlagRequired("driver")

	engineMatchCmd.Flags().StringVar(&engineDriver, "driver", "", "Driver ID (required)")
	engineMatchCmd.Flags().StringVar(&engineBlock, "block", "", "Block ID (required)")
	engineMatchCmd.Flags().StringVar(&engineDate, "date", "", "Week to score against, YYYY-MM-DD (default the block's week)")
	_ = engineMatchCmd.MarkFlagRequired("driver")
	_ = engineMatchCmd.MarkFlagRequired("block")

	engineOwnersCmd.Flags().StringVar(&engineDate, "date", "", "Week to evaluate, YYYY-MM-DD (default this week)")

	engineFillCmd.Flags().StringVar(&engineDate, "date", "", "Week to fill, YYYY-MM-DD (default this week)")
	engineFillCmd.Flags().IntVar(&engineMinDays, "min-days", 0, "Distinct weekdays of history a driver needs (default 3)")

	engineCmd.AddCommand(engineValidateCmd, engineRankCmd, engineWorkloadCmd, engineMatchCmd, engineOwnersCmd, engineFillCmd)
	rootCmd.AddCommand(engineCmd)
}

// offlineService builds a dispatch service over the in-memory snapshot.
// Logs go to stderr so stdout stays machine-readable.
func offlineService() (*dispatch.Service, error) {
	loc, err := time.LoadLocation(engineTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", engineTimezone, err)
	}
	table, err := contracts.LoadFile(engineCanonicalTimes)
	if err != nil {
		return nil, err
	}
	snap, err := store.LoadSnapshotFile(engineSnapshot)
	if err != nil {
		return nil, err
	}
	repo, err := store.NewMemory(snap)
	if err != nil {
		return nil, err
	}

	log := logging.SetupWithWriter("production", "warn", os.Stderr)
	return dispatch.New(repo, dispatch.Options{Location: loc, Table: table}, log), nil
}

func engineDateOr(loc *time.Location, fallback time.Time) (time.Time, error) {
	if engineDate == "" {
		return fallback, nil
	}
	return timewindow.ParseDate(engineDate, loc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
