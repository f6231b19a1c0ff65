/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package matching

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/friendsincode/haulroster/internal/contracts"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/timewindow"
)

// currentWeek starts Sunday 2025-03-30.
var currentWeek = time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)

func newAggregator() *Aggregator {
	return NewAggregator(contracts.Default(), time.UTC)
}

func worked(id, driverID, date string, solo models.ContractType, tractor string) models.Assignment {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	start := day.Add(12 * time.Hour)
	return models.Assignment{
		ID:       id,
		BlockID:  "b-" + id,
		DriverID: driverID,
		IsActive: true,
		Block: &models.Block{
			ID:             "b-" + id,
			ServiceDate:    date,
			StartTimestamp: start,
			EndTimestamp:   start.Add(10 * time.Hour),
			SoloType:       solo,
			TractorID:      tractor,
		},
	}
}

func fixtureHistory() []models.Assignment {
	inactive := worked("x1", "d1", "2025-03-25", models.ContractSolo1, "Tractor_1")
	inactive.IsActive = false
	return []models.Assignment{
		worked("a1", "d1", "2025-03-24", models.ContractSolo1, "Tractor_1"), // Monday, every window
		worked("a2", "d1", "2025-03-17", models.ContractSolo1, "Tractor_9"), // Monday, 2+ weeks
		worked("a3", "d1", "2025-02-10", models.ContractSolo1, "Tractor_1"), // Monday, 8+ weeks
		worked("a4", "d1", "2025-01-13", models.ContractSolo1, "Tractor_1"), // Monday, 12 weeks only
		worked("a5", "d1", "2024-12-30", models.ContractSolo1, "Tractor_1"), // too old
		worked("a6", "d1", "2025-03-31", models.ContractSolo1, "Tractor_1"), // current week
		worked("a7", "d1", "2025-03-26", models.ContractSolo2, "Tractor_4"), // Wednesday 08:30
		worked("a8", "d2", "2025-03-24", models.ContractSolo1, "Tractor_1"), // other driver
		inactive,
	}
}

func TestAggregateHistoryCascadingWindows(t *testing.T) {
	h, err := newAggregator().AggregateHistory("d1", currentWeek.Add(36*time.Hour), fixtureHistory())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	monday := SlotKey{Weekday: time.Monday, Time: "16:30"}
	wednesday := SlotKey{Weekday: time.Wednesday, Time: "08:30"}

	tests := []struct {
		weeks         int
		wantMonday    int
		wantWednesday int
	}{
		{1, 1, 1},
		{2, 2, 1},
		{3, 2, 1},
		{8, 3, 1},
		{12, 4, 1},
	}
	for _, tt := range tests {
		if got := h.Count(tt.weeks, monday); got != tt.wantMonday {
			t.Fatalf("%d-week monday count = %d, want %d", tt.weeks, got, tt.wantMonday)
		}
		if got := h.Count(tt.weeks, wednesday); got != tt.wantWednesday {
			t.Fatalf("%d-week wednesday count = %d, want %d", tt.weeks, got, tt.wantWednesday)
		}
	}

	if h.TotalHistory != 5 {
		t.Fatalf("total history = %d, want 5", h.TotalHistory)
	}
	if !h.CurrentWeekStart.Equal(currentWeek) {
		t.Fatalf("week start = %v, want %v", h.CurrentWeekStart, currentWeek)
	}
	if h.WindowSum(monday) != 12 {
		t.Fatalf("window sum = %d, want 12", h.WindowSum(monday))
	}
	if h.WeekdayCount(time.Monday) != 4 {
		t.Fatalf("monday count = %d, want 4", h.WeekdayCount(time.Monday))
	}

	sums := h.Summaries()
	if len(sums) != len(Windows) || sums[0].Weeks != 12 || sums[0].Total != 5 {
		t.Fatalf("unexpected summaries %+v", sums)
	}
}

func TestAggregateHistoryMissingCanonicalTimeIsFatal(t *testing.T) {
	history := []models.Assignment{worked("a1", "d1", "2025-03-24", models.ContractSolo2, "Tractor_9")}

	_, err := newAggregator().AggregateHistory("d1", currentWeek, history)
	if !errors.Is(err, contracts.ErrNoCanonicalTime) {
		t.Fatalf("expected ErrNoCanonicalTime, got %v", err)
	}
}

func TestAggregateAll(t *testing.T) {
	all, err := newAggregator().AggregateAll([]string{"d1", "d2", "d3"}, currentWeek, fixtureHistory())
	if err != nil {
		t.Fatalf("aggregate all: %v", err)
	}
	if all["d1"].TotalHistory != 5 || all["d2"].TotalHistory != 1 || all["d3"].TotalHistory != 0 {
		t.Fatalf("unexpected totals: d1=%d d2=%d d3=%d", all["d1"].TotalHistory, all["d2"].TotalHistory, all["d3"].TotalHistory)
	}
}

func historyOf(total int) *History {
	return &History{TotalHistory: total, Windows: map[int]SlotCounts{}, WeekdayCounts: map[time.Weekday]int{}}
}

func TestClassifyDriver(t *testing.T) {
	tests := []struct {
		name         string
		prefs        *models.DriverPreferences
		total        int
		wantCategory Category
		wantErrors   int
		wantWarnings int
	}{
		{"established history only", nil, 10, CategoryEstablished, 0, 1},
		{"exactly eight", nil, 8, CategoryEstablished, 0, 1},
		{"a little history", nil, 3, CategoryNew, 0, 1},
		{"preferences without history", &models.DriverPreferences{AllowedDays: []string{"Mon"}, PreferredTimes: []string{"16:30"}}, 0, CategoryNew, 0, 1},
		{"one assignment no preferences", nil, 1, CategoryUnknown, 0, 1},
		{"nothing at all", nil, 0, CategoryUnknown, 0, 0},
		{"malformed preferences only", &models.DriverPreferences{AllowedDays: []string{"Funday"}, PreferredTimes: []string{"4pm"}}, 1, CategoryUnknown, 2, 1},
		{"partly malformed", &models.DriverPreferences{AllowedDays: []string{"Mon", "Moonday"}, PreferredTimes: []string{"25:00", "08:30"}}, 9, CategoryEstablished, 2, 0},
		{"min above max", &models.DriverPreferences{MinDays: 5, MaxDays: 3}, 9, CategoryEstablished, 1, 1},
		{"max out of range", &models.DriverPreferences{MaxDays: 9}, 9, CategoryEstablished, 1, 1},
		{"negative min", &models.DriverPreferences{AllowedDays: []string{"Mon"}, MinDays: -1}, 9, CategoryEstablished, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := models.Driver{ID: "d1", Preferences: tt.prefs}
			p := ClassifyDriver(d, historyOf(tt.total))
			if p.Category != tt.wantCategory {
				t.Fatalf("category = %s, want %s", p.Category, tt.wantCategory)
			}
			if len(p.FormatErrors) != tt.wantErrors {
				t.Fatalf("format errors = %v, want %d", p.FormatErrors, tt.wantErrors)
			}
			if len(p.Warnings) != tt.wantWarnings {
				t.Fatalf("warnings = %v, want %d", p.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestClassifyDriverNormalizesPreferences(t *testing.T) {
	d := models.Driver{ID: "d1", Preferences: &models.DriverPreferences{
		AllowedDays:    []string{"friday", "Mon", "monday"},
		PreferredTimes: []string{"16:30", "16:30"},
	}}
	p := ClassifyDriver(d, nil)
	if len(p.PreferredDays) != 2 || p.PreferredDays[0] != time.Monday || p.PreferredDays[1] != time.Friday {
		t.Fatalf("preferred days = %v", p.PreferredDays)
	}
	if len(p.PreferredTimes) != 1 {
		t.Fatalf("preferred times = %v", p.PreferredTimes)
	}
}

func TestClassifyDriverKeepsValidDayBounds(t *testing.T) {
	d := models.Driver{ID: "d1", Preferences: &models.DriverPreferences{MinDays: 3, MaxDays: 5}}
	p := ClassifyDriver(d, nil)
	if p.MinDays != 3 || p.MaxDays != 5 || len(p.FormatErrors) != 0 {
		t.Fatalf("day bounds = %d..%d errors %v", p.MinDays, p.MaxDays, p.FormatErrors)
	}

	d.Preferences.MinDays = 6
	p = ClassifyDriver(d, nil)
	if p.MinDays != 0 || p.MaxDays != 0 || len(p.FormatErrors) != 1 {
		t.Fatalf("invalid bounds kept: %d..%d errors %v", p.MinDays, p.MaxDays, p.FormatErrors)
	}
}

func weekdayHistory(counts map[time.Weekday]int, times map[string]int) *History {
	h := historyOf(0)
	h.Windows[WidestWindow] = SlotCounts{}
	for wd, n := range counts {
		h.WeekdayCounts[wd] = n
		h.TotalHistory += n
	}
	for clock, n := range times {
		h.Windows[WidestWindow][SlotKey{Weekday: time.Monday, Time: clock}] = n
	}
	return h
}

func TestClassifyDriverInfersPreferences(t *testing.T) {
	tests := []struct {
		name      string
		counts    map[time.Weekday]int
		wantDays  []time.Weekday
		wantGroup PatternGroup
	}{
		{"early week", map[time.Weekday]int{time.Monday: 4, time.Tuesday: 3, time.Wednesday: 2, time.Friday: 1}, []time.Weekday{time.Monday, time.Tuesday}, PatternSunWed},
		{"late week", map[time.Weekday]int{time.Thursday: 4, time.Friday: 3, time.Saturday: 2, time.Wednesday: 1}, []time.Weekday{time.Thursday, time.Friday}, PatternWedSat},
		{"split week", map[time.Weekday]int{time.Monday: 4, time.Friday: 4}, []time.Weekday{time.Monday, time.Friday}, PatternMixed},
		{"too little history", map[time.Weekday]int{time.Monday: 3, time.Tuesday: 2}, []time.Weekday{time.Monday, time.Tuesday}, ""},
		{"no day reaches a quarter", map[time.Weekday]int{
			time.Sunday: 2, time.Monday: 2, time.Tuesday: 2, time.Wednesday: 2, time.Thursday: 2, time.Friday: 1, time.Saturday: 1,
		}, []time.Weekday{time.Sunday, time.Monday, time.Tuesday}, PatternMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ClassifyDriver(models.Driver{ID: "d1"}, weekdayHistory(tt.counts, nil))
			if !reflect.DeepEqual(p.InferredDays, tt.wantDays) {
				t.Fatalf("inferred days = %v, want %v", p.InferredDays, tt.wantDays)
			}
			if p.PatternGroup != tt.wantGroup {
				t.Fatalf("pattern group = %q, want %q", p.PatternGroup, tt.wantGroup)
			}
		})
	}
}

func TestClassifyDriverInfersTopTimes(t *testing.T) {
	h := weekdayHistory(map[time.Weekday]int{time.Monday: 10}, map[string]int{"16:30": 5, "08:30": 2, "20:30": 2, "01:30": 1})
	p := ClassifyDriver(models.Driver{ID: "d1"}, h)
	if !reflect.DeepEqual(p.InferredTimes, []string{"16:30", "08:30", "20:30"}) {
		t.Fatalf("inferred times = %v", p.InferredTimes)
	}
	if empty := ClassifyDriver(models.Driver{ID: "d2"}, nil); len(empty.InferredDays) != 0 || len(empty.InferredTimes) != 0 || empty.PatternGroup != "" {
		t.Fatalf("expected nothing inferred without history, got %+v", empty)
	}
}

func TestScoreMatchTiers(t *testing.T) {
	h, err := newAggregator().AggregateHistory("d1", currentWeek, fixtureHistory())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	prefs := &models.DriverPreferences{AllowedDays: []string{"Monday"}, PreferredTimes: []string{"16:30"}}
	withPrefs := ClassifyDriver(models.Driver{ID: "d1", Preferences: prefs}, h)
	historyOnly := ClassifyDriver(models.Driver{ID: "d1"}, h)
	daysOnly := ClassifyDriver(models.Driver{ID: "d1", Preferences: &models.DriverPreferences{AllowedDays: []string{"Monday"}}}, nil)
	twoTimes := ClassifyDriver(models.Driver{ID: "d1", Preferences: &models.DriverPreferences{AllowedDays: []string{"Monday"}, PreferredTimes: []string{"08:00", "16:00"}}}, nil)
	unknown := ClassifyDriver(models.Driver{ID: "d9"}, nil)

	tests := []struct {
		name      string
		in        MatchInput
		wantTier  int
		wantScore float64
	}{
		{"exact with history", MatchInput{Profile: withPrefs, History: h, Weekday: time.Monday, CanonicalTime: "16:30", LegallyAvailable: true}, 1, 99},
		{"exact without history", MatchInput{Profile: withPrefs, Weekday: time.Monday, CanonicalTime: "16:30"}, 1, 95},
		{"half hour bump", MatchInput{Profile: withPrefs, Weekday: time.Monday, CanonicalTime: "17:00", LegallyAvailable: true}, 2, 87},
		{"hour bump", MatchInput{Profile: withPrefs, Weekday: time.Monday, CanonicalTime: "15:30", LegallyAvailable: true}, 2, 80},
		{"four hour bump", MatchInput{Profile: withPrefs, Weekday: time.Monday, CanonicalTime: "20:30", LegallyAvailable: true}, 3, 75.18},
		{"twelve hour bump", MatchInput{Profile: withPrefs, Weekday: time.Monday, CanonicalTime: "04:30", LegallyAvailable: true}, 3, 65},
		{"preferred time other day", MatchInput{Profile: withPrefs, Weekday: time.Tuesday, CanonicalTime: "16:30", LegallyAvailable: true}, 3, 72},
		{"preferred day no time", MatchInput{Profile: daysOnly, Weekday: time.Monday, CanonicalTime: "01:30", LegallyAvailable: true}, 3, 70},
		{"closest of several times", MatchInput{Profile: twoTimes, Weekday: time.Monday, CanonicalTime: "16:30", LegallyAvailable: true}, 2, 87},
		{"history slot", MatchInput{Profile: historyOnly, History: h, Weekday: time.Monday, CanonicalTime: "16:30", LegallyAvailable: true}, 4, 62},
		{"available on worked weekday", MatchInput{Profile: historyOnly, History: h, Weekday: time.Monday, CanonicalTime: "20:30", LegallyAvailable: true}, 5, 37},
		{"available otherwise", MatchInput{Profile: withPrefs, History: h, Weekday: time.Tuesday, CanonicalTime: "20:30", LegallyAvailable: true}, 5, 25},
		{"not available", MatchInput{Profile: withPrefs, History: h, Weekday: time.Tuesday, CanonicalTime: "20:30"}, 6, 0},
		{"unknown driver available", MatchInput{Profile: unknown, Weekday: time.Monday, CanonicalTime: "16:30", LegallyAvailable: true}, 6, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScoreMatch(tt.in)
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if got.Tier != tt.wantTier || got.Score != tt.wantScore {
				t.Fatalf("got tier %d score %v (%s), want tier %d score %v", got.Tier, got.Score, got.Reason, tt.wantTier, tt.wantScore)
			}
		})
	}
}

func TestScoreMatchExactPreferenceAlwaysTierOne(t *testing.T) {
	for m := 0; m < timewindow.MinutesPerDay; m += 45 {
		clock := timewindow.FormatClock(m)
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			p := ClassifyDriver(models.Driver{ID: "d", Preferences: &models.DriverPreferences{
				AllowedDays:    []string{wd.String()},
				PreferredTimes: []string{clock},
			}}, nil)
			got, err := ScoreMatch(MatchInput{Profile: p, Weekday: wd, CanonicalTime: clock})
			if err != nil {
				t.Fatalf("score: %v", err)
			}
			if got.Tier != 1 || got.Score < 95 {
				t.Fatalf("%s %s: got tier %d score %v", wd, clock, got.Tier, got.Score)
			}
		}
	}
}

func TestScoreMatchTierBandsHold(t *testing.T) {
	p := ClassifyDriver(models.Driver{ID: "d", Preferences: &models.DriverPreferences{
		AllowedDays: []string{"Wednesday"}, PreferredTimes: []string{"10:00"},
	}}, nil)
	bands := map[int][2]float64{1: {95, 100}, 2: {80, 94}, 3: {65, 79}}
	for m := 0; m < timewindow.MinutesPerDay; m += 7 {
		got, err := ScoreMatch(MatchInput{Profile: p, Weekday: time.Wednesday, CanonicalTime: timewindow.FormatClock(m)})
		if err != nil {
			t.Fatalf("score: %v", err)
		}
		band := bands[got.Tier]
		if got.Score < band[0] || got.Score > band[1] {
			t.Fatalf("minute %d: tier %d score %v outside %v", m, got.Tier, got.Score, band)
		}
	}
}

func TestScoreMatchRejectsMalformedCanonicalTime(t *testing.T) {
	_, err := ScoreMatch(MatchInput{Profile: Profile{Category: CategoryNew}, CanonicalTime: "4:30pm"})
	if !errors.Is(err, timewindow.ErrInvalidClock) {
		t.Fatalf("expected ErrInvalidClock, got %v", err)
	}
}

func TestSlotOwners(t *testing.T) {
	var history []models.Assignment
	// d1 worked Tractor_1 Mondays three times, all more than eight weeks ago.
	for _, d := range []string{"2024-12-02", "2024-12-09", "2024-12-16"} {
		history = append(history, worked("d1"+d, "d1", d, models.ContractSolo1, "Tractor_1"))
	}
	// d2 worked the same slot three times recently.
	for _, d := range []string{"2025-03-10", "2025-03-17", "2025-03-24"} {
		history = append(history, worked("d2"+d, "d2", d, models.ContractSolo1, "Tractor_1"))
	}
	// Tractor_4 solo2 Wednesdays: dz and da tie on everything.
	history = append(history,
		worked("dz1", "dz", "2025-03-19", models.ContractSolo2, "Tractor_4"),
		worked("da1", "da", "2025-03-26", models.ContractSolo2, "tractor 4"),
		worked("late", "dz", "2025-04-02", models.ContractSolo2, "Tractor_4"), // current week, ignored
	)

	owners, err := newAggregator().SlotOwners(currentWeek, history)
	if err != nil {
		t.Fatalf("slot owners: %v", err)
	}
	if len(owners) != 2 {
		t.Fatalf("expected 2 slots, got %+v", owners)
	}

	first := owners[0]
	if first.Slot.SoloType != models.ContractSolo1 || first.Slot.Weekday != time.Monday || first.Slot.CanonicalTime != "16:30" {
		t.Fatalf("unexpected first slot %+v", first.Slot)
	}
	if first.OwnerID != "d2" || first.Dates != 3 || first.Recent != 3 || first.Contenders != 2 {
		t.Fatalf("recent worker should own the tied slot, got %+v", first)
	}

	second := owners[1]
	if second.Slot.TractorID != "Tractor_4" || second.OwnerID != "da" {
		t.Fatalf("full tie should go to lower driver id, got %+v", second)
	}
}
