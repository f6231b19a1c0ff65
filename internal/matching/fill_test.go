package matching

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/friendsincode/haulroster/internal/compliance"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/ranking"
)

func newPlanner() *Planner {
	return NewPlanner(newAggregator(), ranking.NewRanker(compliance.NewCalculator(time.UTC), ranking.Options{}))
}

func weekBlock(id, date, tractor string) models.Block {
	b := *worked(id, "", date, models.ContractSolo1, tractor).Block
	b.ID = id
	return b
}

func solo1(id string) models.Driver {
	return models.Driver{ID: id, Name: id, Status: models.DriverStatusActive, ContractType: models.ContractSolo1}
}

// fillFixture: d1 owns Mondays and has the most Tuesday Tractor_4 history,
// d3 is the other Tuesday Tractor_4 driver, d2 holds Thursday already and d5
// has worked too few weekdays to be planned.
func fillFixture() FillInput {
	var history []models.Assignment
	add := func(driverID, tractor string, dates ...string) {
		for _, d := range dates {
			history = append(history, worked(driverID+"-"+tractor+"-"+d, driverID, d, models.ContractSolo1, tractor))
		}
	}
	add("d1", "Tractor_1", "2025-03-10", "2025-03-17", "2025-03-24", "2025-03-11", "2025-03-12")
	add("d1", "Tractor_4", "2025-02-18", "2025-02-25", "2025-03-04", "2025-03-18")
	add("d2", "Tractor_1", "2025-03-03", "2025-03-06", "2025-03-07")
	add("d3", "Tractor_4", "2025-03-04", "2025-03-18", "2025-03-19", "2025-03-20")
	add("d5", "Tractor_1", "2025-02-17", "2025-02-24", "2025-03-03", "2025-03-10", "2025-03-17", "2025-03-18")

	held := weekBlock("b-held", "2025-04-03", "Tractor_1")
	history = append(history, models.Assignment{ID: "held", BlockID: held.ID, DriverID: "d2", IsActive: true, Block: &held})

	return FillInput{
		WeekStart: currentWeek,
		Blocks: []models.Block{
			weekBlock("b-mon", "2025-03-31", "Tractor_1"),
			weekBlock("b-tue-a", "2025-04-01", "Tractor_4"),
			weekBlock("b-tue-b", "2025-04-01", "Tractor_1"),
			weekBlock("b-sat", "2025-04-05", "Tractor_1"),
			held,
		},
		Pool:        []models.Driver{solo1("d1"), solo1("d2"), solo1("d3"), solo1("d5")},
		Assignments: history,
	}
}

func TestFillWeek(t *testing.T) {
	in := fillFixture()
	in.Pool[0].Preferences = &models.DriverPreferences{MinDays: 4}

	plan, err := newPlanner().FillWeek(context.Background(), in)
	if err != nil {
		t.Fatalf("fill week: %v", err)
	}
	if plan.MinDays != DefaultFillMinDays || plan.Qualified != 3 {
		t.Fatalf("min days = %d qualified = %d, want %d and 3", plan.MinDays, plan.Qualified, DefaultFillMinDays)
	}

	got := make(map[string]string)
	var order []string
	for _, a := range plan.Assignments {
		got[a.BlockID] = a.DriverID
		order = append(order, a.BlockID)
	}
	want := map[string]string{"b-mon": "d1", "b-tue-a": "d3", "b-tue-b": "d1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("plan = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(order, []string{"b-mon", "b-tue-a", "b-tue-b"}) {
		t.Fatalf("order = %v", order)
	}
	if plan.Assignments[0].HistoryCount != 3 || plan.Assignments[0].Slot != "Monday 16:30" {
		t.Fatalf("unexpected monday plan %+v", plan.Assignments[0])
	}

	if len(plan.Unfilled) != 1 || plan.Unfilled[0].BlockID != "b-sat" || plan.Unfilled[0].Reason != UnfilledNoHistory {
		t.Fatalf("unfilled = %+v", plan.Unfilled)
	}
	if plan.Workloads["d1"].DaysWorked != 2 || plan.Workloads["d3"].DaysWorked != 1 {
		t.Fatalf("workloads = %+v", plan.Workloads)
	}
	if !reflect.DeepEqual(plan.BelowMinDays, []string{"d1"}) {
		t.Fatalf("below min days = %v", plan.BelowMinDays)
	}
}

func TestFillWeekSkipsDriversAtMaxDays(t *testing.T) {
	in := fillFixture()
	in.Pool[2].Preferences = &models.DriverPreferences{MaxDays: 1}
	fri := weekBlock("b-fri", "2025-04-04", "Tractor_1")
	in.Assignments = append(in.Assignments, models.Assignment{ID: "fri", BlockID: fri.ID, DriverID: "d3", IsActive: true, Block: &fri})

	plan, err := newPlanner().FillWeek(context.Background(), in)
	if err != nil {
		t.Fatalf("fill week: %v", err)
	}
	for _, a := range plan.Assignments {
		if a.DriverID == "d3" {
			t.Fatalf("d3 planned past max days: %+v", a)
		}
	}
	var tue *UnfilledBlock
	for i := range plan.Unfilled {
		if plan.Unfilled[i].BlockID == "b-tue-a" {
			tue = &plan.Unfilled[i]
		}
	}
	if tue == nil || tue.Reason != UnfilledNoLegalCandidate || tue.Candidates != 2 {
		t.Fatalf("expected b-tue-a unfilled with 2 candidates, got %+v", plan.Unfilled)
	}
}

func TestFillWeekMinDaysQualification(t *testing.T) {
	in := fillFixture()
	in.MinDays = 4

	plan, err := newPlanner().FillWeek(context.Background(), in)
	if err != nil {
		t.Fatalf("fill week: %v", err)
	}
	if plan.Qualified != 0 || len(plan.Assignments) != 0 {
		t.Fatalf("expected nobody qualified at 4 days, got %+v", plan)
	}
	if len(plan.Unfilled) != 4 {
		t.Fatalf("expected every open block unfilled, got %+v", plan.Unfilled)
	}
}
