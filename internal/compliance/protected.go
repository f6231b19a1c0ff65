/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// checkProtected applies the driver's own protected rules and exclusive slot
// claims held by other drivers.
func (c *Calculator) checkProtected(e *evaluation, driver models.Driver, block models.Block, prior []worked, rules []models.ProtectedDriverRule) error {
	weekday, err := timewindow.DateWeekday(block.ServiceDate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	for _, rule := range rules {
		if !rule.AppliesOn(block.ServiceDate) {
			continue
		}
		own := rule.DriverID == driver.ID

		switch rule.RuleType {
		case models.ProtectedRuleBlockedDays:
			if !own {
				continue
			}
			for _, name := range rule.BlockedDays {
				wd, err := timewindow.ParseWeekday(name)
				if err != nil {
					e.add(models.RuleProtectedDriver, models.ValidationWarning, false,
						"protected rule %s lists unrecognised weekday %q", rule.ID, name)
					continue
				}
				if wd == weekday {
					e.add(models.RuleProtectedDriver, models.ValidationViolation, rule.Hard,
						"driver is blocked from working on %ss", weekday)
					break
				}
			}

		case models.ProtectedRuleAllowedSoloTypes:
			if !own || len(rule.AllowedSoloTypes) == 0 {
				continue
			}
			allowed := false
			for _, t := range rule.AllowedSoloTypes {
				if t == block.SoloType {
					allowed = true
					break
				}
			}
			if !allowed {
				e.add(models.RuleProtectedDriver, models.ValidationViolation, rule.Hard,
					"driver is restricted to %s blocks, not %s", joinContracts(rule.AllowedSoloTypes), block.SoloType)
			}

		case models.ProtectedRuleMaxDaysPerWeek:
			if !own || rule.MaxDaysPerWeek <= 0 {
				continue
			}
			days := c.weekDays(block, prior)
			if days > rule.MaxDaysPerWeek {
				e.add(models.RuleProtectedDriver, models.ValidationViolation, rule.Hard,
					"block would be day %d this week; driver is capped at %d", days, rule.MaxDaysPerWeek)
			}

		case models.ProtectedRuleExclusiveSlot:
			if own || !claims(rule, block, weekday) {
				continue
			}
			e.add(models.RuleProtectedDriver, models.ValidationViolation, rule.Hard,
				"%s %s on %ss is reserved for driver %s", block.SoloType, contracts.NormalizeTractor(block.TractorID), weekday, rule.DriverID)
		}
	}
	return nil
}

// claims reports whether an exclusive slot rule covers block. Empty rule
// fields match anything.
func claims(rule models.ProtectedDriverRule, block models.Block, weekday time.Weekday) bool {
	if rule.SlotSoloType != "" && rule.SlotSoloType != block.SoloType {
		return false
	}
	if rule.SlotTractorID != "" && contracts.NormalizeTractor(rule.SlotTractorID) != contracts.NormalizeTractor(block.TractorID) {
		return false
	}
	if rule.SlotWeekday != "" {
		wd, err := timewindow.ParseWeekday(rule.SlotWeekday)
		if err != nil || wd != weekday {
			return false
		}
	}
	return rule.SlotSoloType != "" || rule.SlotTractorID != "" || rule.SlotWeekday != ""
}

func (c *Calculator) weekDays(block models.Block, prior []worked) int {
	weekStart := timewindow.WeekStart(block.StartTimestamp, c.loc)
	dates := map[string]struct{}{timewindow.DateKey(block.StartTimestamp, c.loc): {}}
	for _, w := range prior {
		if timewindow.InWeek(w.block.StartTimestamp, weekStart) {
			dates[timewindow.DateKey(w.block.StartTimestamp, c.loc)] = struct{}{}
		}
	}
	return len(dates)
}

func joinContracts(types []models.ContractType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, "/")
}
