package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/haulroster/internal/db"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(database, zerolog.Nop())
}

func block(id, date string, startHour int, hours float64) models.Block {
	day, _ := time.Parse("2006-01-02", date)
	start := day.Add(time.Duration(startHour) * time.Hour)
	return models.Block{
		ID:             id,
		ServiceDate:    date,
		StartTimestamp: start,
		EndTimestamp:   start.Add(time.Duration(hours * float64(time.Hour))),
		Duration:       hours,
		SoloType:       models.ContractSolo1,
		TractorID:      "Tractor_1",
	}
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		Drivers: []models.Driver{
			{ID: "d1", Name: "Ana", Status: models.DriverStatusActive, ContractType: models.ContractSolo1,
				Preferences: &models.DriverPreferences{AllowedDays: []string{"monday"}, PreferredTimes: []string{"16:30"}}},
			{ID: "d2", Name: "Bo", Status: models.DriverStatusActive, ContractType: models.ContractSolo2},
		},
		Blocks: []models.Block{
			block("b1", "2025-03-31", 16, 14),
			block("b2", "2025-04-01", 16, 14),
			block("b3", "2025-04-08", 16, 14),
		},
		Assignments: []models.Assignment{
			{ID: "a1", BlockID: "b1", DriverID: "d1", IsActive: true},
			{ID: "a2", BlockID: "b2", DriverID: "d2", IsActive: false},
			{ID: "a3", BlockID: "b3", DriverID: "d2", IsActive: true},
		},
		Rules: []models.ProtectedDriverRule{
			{ID: "r1", DriverID: "d1", RuleType: models.ProtectedRuleBlockedDays, Active: true, BlockedDays: []string{"sunday"}},
			{ID: "r2", DriverID: "d2", RuleType: models.ProtectedRuleMaxDaysPerWeek, Active: false, MaxDaysPerWeek: 3},
		},
	}
}

// repo is the surface both implementations share.
type repo interface {
	Driver(ctx context.Context, id string) (models.Driver, error)
	Drivers(ctx context.Context) ([]models.Driver, error)
	Block(ctx context.Context, id string) (models.Block, error)
	Blocks(ctx context.Context, from, to time.Time) ([]models.Block, error)
	Assignment(ctx context.Context, id string) (models.Assignment, error)
	ActiveAssignments(ctx context.Context, f AssignmentFilter) ([]models.Assignment, error)
	ActiveRules(ctx context.Context) ([]models.ProtectedDriverRule, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	Unassign(ctx context.Context, id string, at time.Time) (models.Assignment, error)
}

func repos(t *testing.T) map[string]repo {
	t.Helper()
	s := newTestStore(t)
	if err := s.Import(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("import: %v", err)
	}
	m, err := NewMemory(testSnapshot())
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	return map[string]repo{"gorm": s, "memory": m}
}

func TestRepositoryReads(t *testing.T) {
	ctx := context.Background()
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			d, err := r.Driver(ctx, "d1")
			if err != nil {
				t.Fatalf("Driver: %v", err)
			}
			if d.Preferences == nil || d.Preferences.PreferredTimes[0] != "16:30" {
				t.Fatalf("preferences not preserved: %+v", d.Preferences)
			}
			if _, err := r.Driver(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing driver err = %v", err)
			}
			if _, err := r.Block(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing block err = %v", err)
			}

			drivers, err := r.Drivers(ctx)
			if err != nil || len(drivers) != 2 || drivers[0].ID != "d1" {
				t.Fatalf("Drivers = %v, %v", drivers, err)
			}

			all, err := r.ActiveAssignments(ctx, AssignmentFilter{})
			if err != nil {
				t.Fatalf("ActiveAssignments: %v", err)
			}
			if len(all) != 2 || all[0].ID != "a1" || all[1].ID != "a3" {
				t.Fatalf("active = %+v", all)
			}
			for _, a := range all {
				if a.Block == nil || a.Block.ID != a.BlockID {
					t.Fatalf("assignment %s block not loaded", a.ID)
				}
			}

			from := time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC)
			window, err := r.ActiveAssignments(ctx, AssignmentFilter{DriverID: "d2", From: from, To: from.AddDate(0, 0, 7)})
			if err != nil || len(window) != 1 || window[0].ID != "a3" {
				t.Fatalf("window = %+v, %v", window, err)
			}
			none, err := r.ActiveAssignments(ctx, AssignmentFilter{DriverID: "d1", From: from})
			if err != nil || len(none) != 0 {
				t.Fatalf("expected none, got %+v, %v", none, err)
			}

			week := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)
			blocks, err := r.Blocks(ctx, week, week.AddDate(0, 0, 7))
			if err != nil || len(blocks) != 2 || blocks[0].ID != "b1" || blocks[1].ID != "b2" {
				t.Fatalf("blocks = %+v, %v", blocks, err)
			}

			rules, err := r.ActiveRules(ctx)
			if err != nil || len(rules) != 1 || rules[0].ID != "r1" || rules[0].BlockedDays[0] != "sunday" {
				t.Fatalf("rules = %+v, %v", rules, err)
			}
		})
	}
}

func TestRepositoryAssignmentLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			err := r.CreateAssignment(ctx, &models.Assignment{BlockID: "b1", DriverID: "d2"})
			if !errors.Is(err, ErrBlockAlreadyAssigned) {
				t.Fatalf("expected ErrBlockAlreadyAssigned, got %v", err)
			}

			// b2 only has an inactive assignment.
			a := &models.Assignment{BlockID: "b2", DriverID: "d1", ValidationStatus: models.ValidationWarning,
				ValidationSummary: map[string]any{"status": "warning"}}
			if err := r.CreateAssignment(ctx, a); err != nil {
				t.Fatalf("CreateAssignment: %v", err)
			}
			if a.ID == "" || !a.IsActive || a.Block == nil || a.Block.ID != "b2" {
				t.Fatalf("created = %+v", a)
			}

			got, err := r.Assignment(ctx, a.ID)
			if err != nil {
				t.Fatalf("Assignment: %v", err)
			}
			if got.ValidationStatus != models.ValidationWarning || got.ValidationSummary["status"] != "warning" {
				t.Fatalf("validation snapshot not stored: %+v", got)
			}

			at := time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC)
			done, err := r.Unassign(ctx, a.ID, at)
			if err != nil {
				t.Fatalf("Unassign: %v", err)
			}
			if done.IsActive || done.UnassignedAt == nil || !done.UnassignedAt.Equal(at) {
				t.Fatalf("unassigned = %+v", done)
			}
			if _, err := r.Unassign(ctx, a.ID, at); !errors.Is(err, ErrNotActive) {
				t.Fatalf("second unassign err = %v", err)
			}
			if _, err := r.Unassign(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing unassign err = %v", err)
			}

			if err := r.CreateAssignment(ctx, &models.Assignment{BlockID: "b2", DriverID: "d2"}); err != nil {
				t.Fatalf("reassign after unassign: %v", err)
			}
			if err := r.CreateAssignment(ctx, &models.Assignment{BlockID: "missing", DriverID: "d2"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("unknown block err = %v", err)
			}
		})
	}
}

func TestConcurrentCreateAssignsOnce(t *testing.T) {
	ctx := context.Background()
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				success int
			)
			for _, driver := range []string{"d1", "d2", "d1", "d2"} {
				wg.Add(1)
				go func(driverID string) {
					defer wg.Done()
					err := r.CreateAssignment(ctx, &models.Assignment{BlockID: "b2", DriverID: driverID})
					if err == nil {
						mu.Lock()
						success++
						mu.Unlock()
					}
				}(driver)
			}
			wg.Wait()
			if success != 1 {
				t.Fatalf("successful creates = %d, want 1", success)
			}
		})
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"unknown driver", func(s *Snapshot) { s.Assignments[0].DriverID = "ghost" }},
		{"unknown block", func(s *Snapshot) { s.Assignments[0].BlockID = "ghost" }},
		{"two active on block", func(s *Snapshot) { s.Assignments[2].BlockID = "b1" }},
		{"duplicate driver", func(s *Snapshot) { s.Drivers[1].ID = "d1" }},
		{"inverted block", func(s *Snapshot) { s.Blocks[0].EndTimestamp = s.Blocks[0].StartTimestamp }},
		{"bad rule type", func(s *Snapshot) { s.Rules[0].RuleType = "curfew" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSnapshot()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := testSnapshot().Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}
}

func TestParseSnapshotYAML(t *testing.T) {
	data := []byte(`
drivers:
  - id: d1
    name: Ana
    status: active
    contract_type: solo1
    preferences:
      allowed_days: [monday, tue]
      preferred_times: ["16:30"]
blocks:
  - id: b1
    service_date: "2025-03-31"
    start_timestamp: 2025-03-31T16:30:00-05:00
    end_timestamp: 2025-04-01T06:30:00-05:00
    duration: 14
    solo_type: solo1
    tractor_id: Tractor_1
assignments:
  - id: a1
    block_id: b1
    driver_id: d1
    is_active: true
rules:
  - id: r1
    driver_id: d1
    rule_type: blocked_days
    active: true
    hard: true
    blocked_days: [sunday]
`)
	snap, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if len(snap.Drivers) != 1 || len(snap.Blocks) != 1 || len(snap.Assignments) != 1 || len(snap.Rules) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Blocks[0].Hours() != 14 || snap.Blocks[0].StartTimestamp.UTC().Hour() != 21 {
		t.Fatalf("block times not parsed: %+v", snap.Blocks[0])
	}
	if !snap.Rules[0].Hard || snap.Drivers[0].Preferences.AllowedDays[1] != "tue" {
		t.Fatalf("nested fields not parsed: %+v %+v", snap.Rules[0], snap.Drivers[0].Preferences)
	}

	if _, err := ParseSnapshot([]byte("drivers: [")); err == nil {
		t.Fatal("expected yaml error")
	}
}
