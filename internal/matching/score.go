/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package matching

import (
	"fmt"
	"math"
	"time"

	"github.com/friendsincode/haulroster/internal/timewindow"
)

// Tier score bands.
const (
	tier1Base     = 95.0
	tier2Top      = 94.0
	tier3Top      = 79.0
	tier3NoTime   = 70.0
	tier3OffDay   = 72.0
	tier4Base     = 50.0
	tier5Base     = 25.0
	tier6Score    = 15.0
	bumpTolerance = 60
)

// MatchInput is one (driver, block slot) pair to score.
type MatchInput struct {
	Profile          Profile
	History          *History // nil when the driver has none
	Weekday          time.Weekday
	CanonicalTime    string // HH:MM
	LegallyAvailable bool
}

// MatchScore is a tier 1 (best) to 6 with a 0-100 score inside the tier's band.
type MatchScore struct {
	Tier   int     `json:"tier"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
	// Bump is the signed minutes from the closest preferred time to the
	// canonical start, when a time preference exists.
	Bump *int `json:"bump,omitempty"`
}

// ScoreMatch computes the deterministic match tier for in. It only fails
// when CanonicalTime is not a valid HH:MM.
func ScoreMatch(in MatchInput) (MatchScore, error) {
	canonical, err := timewindow.ParseClock(in.CanonicalTime)
	if err != nil {
		return MatchScore{}, fmt.Errorf("score match: %w", err)
	}
	slot := SlotKey{Weekday: in.Weekday, Time: timewindow.FormatClock(canonical)}

	if in.Profile.Category == CategoryUnknown {
		return lastResort(in, "insufficient data; emergency fill only"), nil
	}

	var bump *int
	for _, raw := range in.Profile.PreferredTimes {
		pref, err := timewindow.ParseClock(raw)
		if err != nil {
			continue
		}
		b := timewindow.Bump(pref, canonical)
		if bump == nil || abs(b) < abs(*bump) {
			bb := b
			bump = &bb
		}
	}
	dayMatch := in.Profile.PrefersDay(in.Weekday)

	switch {
	case dayMatch && bump != nil && *bump == 0:
		return MatchScore{
			Tier:   1,
			Score:  tier1Base + float64(min(5, in.History.Count(WidestWindow, slot))),
			Reason: "preferred day at preferred time",
			Bump:   bump,
		}, nil
	case dayMatch && bump != nil && abs(*bump) <= bumpTolerance:
		return MatchScore{
			Tier:   2,
			Score:  round2(tier2Top - float64(abs(*bump))*14/60),
			Reason: fmt.Sprintf("preferred day, start %+d min from preferred time", *bump),
			Bump:   bump,
		}, nil
	case dayMatch && bump != nil:
		return MatchScore{
			Tier:   3,
			Score:  round2(tier3Top - float64(abs(*bump)-bumpTolerance)*14/660),
			Reason: fmt.Sprintf("preferred day, start %+d min from preferred time", *bump),
			Bump:   bump,
		}, nil
	case dayMatch:
		return MatchScore{Tier: 3, Score: tier3NoTime, Reason: "preferred day, no preferred time stated"}, nil
	case bump != nil && *bump == 0:
		return MatchScore{Tier: 3, Score: tier3OffDay, Reason: "preferred time on a non-preferred day", Bump: bump}, nil
	}

	if n := in.History.Count(WidestWindow, slot); n > 0 {
		return MatchScore{
			Tier:   4,
			Score:  tier4Base + float64(min(14, in.History.WindowSum(slot))),
			Reason: fmt.Sprintf("worked %s %d times in the last %d weeks", slot, n, WidestWindow),
			Bump:   bump,
		}, nil
	}

	if in.LegallyAvailable {
		return MatchScore{
			Tier:   5,
			Score:  tier5Base + float64(min(24, 3*in.History.WeekdayCount(in.Weekday))),
			Reason: "legally available, no preference or history match",
			Bump:   bump,
		}, nil
	}
	return lastResort(in, "not legally available"), nil
}

func lastResort(in MatchInput, reason string) MatchScore {
	score := 0.0
	if in.LegallyAvailable {
		score = tier6Score
	}
	return MatchScore{Tier: 6, Score: score, Reason: reason}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
