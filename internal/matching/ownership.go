/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// RecentWeeks is the window used to break ownership ties.
const RecentWeeks = 8

// Slot is a concrete recurring contract slot.
type Slot struct {
	SoloType      models.ContractType `json:"solo_type"`
	TractorID     string              `json:"tractor_id"`
	Weekday       time.Weekday        `json:"weekday"`
	CanonicalTime string              `json:"canonical_time"`
}

// SlotOwnership names the driver who has worked a slot the most.
type SlotOwnership struct {
	Slot       Slot   `json:"slot"`
	OwnerID    string `json:"owner_id"`
	Dates      int    `json:"dates"`
	Recent     int    `json:"recent"`
	Contenders int    `json:"contenders"`
}

type ownerTally struct {
	dates  map[string]struct{}
	recent int
}

// SlotOwners picks an owner for every slot worked before currentWeekStart.
// The owner has the most distinct dates on the slot; ties go to the driver
// with more work on it in the last RecentWeeks weeks, then to the lower
// driver ID.
func (a *Aggregator) SlotOwners(currentWeekStart time.Time, historical []models.Assignment) ([]SlotOwnership, error) {
	weekStart := timewindow.WeekStart(currentWeekStart, a.loc)
	recentFrom := timewindow.AddWeeks(weekStart, -RecentWeeks)

	tallies := make(map[Slot]map[string]*ownerTally)
	for _, asg := range historical {
		if !asg.IsActive {
			continue
		}
		if asg.Block == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBlock, asg.ID)
		}
		b := asg.Block
		if !b.StartTimestamp.Before(weekStart) {
			continue
		}
		key, err := a.SlotFor(*b)
		if err != nil {
			return nil, fmt.Errorf("slot owners: %w", err)
		}
		slot := Slot{
			SoloType:      b.SoloType,
			TractorID:     contracts.NormalizeTractor(b.TractorID),
			Weekday:       key.Weekday,
			CanonicalTime: key.Time,
		}
		drivers := tallies[slot]
		if drivers == nil {
			drivers = make(map[string]*ownerTally)
			tallies[slot] = drivers
		}
		t := drivers[asg.DriverID]
		if t == nil {
			t = &ownerTally{dates: make(map[string]struct{})}
			drivers[asg.DriverID] = t
		}
		if _, seen := t.dates[b.ServiceDate]; !seen {
			t.dates[b.ServiceDate] = struct{}{}
			if !b.StartTimestamp.Before(recentFrom) {
				t.recent++
			}
		}
	}

	out := make([]SlotOwnership, 0, len(tallies))
	for slot, drivers := range tallies {
		best := SlotOwnership{Slot: slot, Contenders: len(drivers)}
		for id, t := range drivers {
			dates := len(t.dates)
			better := dates > best.Dates ||
				(dates == best.Dates && t.recent > best.Recent) ||
				(dates == best.Dates && t.recent == best.Recent && (best.OwnerID == "" || id < best.OwnerID))
			if better {
				best.OwnerID, best.Dates, best.Recent = id, dates, t.recent
			}
		}
		out = append(out, best)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Slot, out[j].Slot
		if a.SoloType != b.SoloType {
			return a.SoloType < b.SoloType
		}
		if a.TractorID != b.TractorID {
			if len(a.TractorID) != len(b.TractorID) {
				return len(a.TractorID) < len(b.TractorID)
			}
			return a.TractorID < b.TractorID
		}
		return a.Weekday < b.Weekday
	})
	return out, nil
}
