package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/friendsincode/haulroster/internal/matching"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/rs/zerolog"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	if !c.IsAvailable() {
		t.Fatal("cache should be available against miniredis")
	}
	return c, mr
}

func sampleHistory(weekStart time.Time) *matching.History {
	slot := matching.SlotKey{Weekday: time.Monday, Time: "16:30"}
	h := &matching.History{
		DriverID:         "drv-1",
		CurrentWeekStart: weekStart,
		Windows:          make(map[int]matching.SlotCounts),
		WeekdayCounts:    map[time.Weekday]int{time.Monday: 5},
		TotalHistory:     5,
	}
	for _, w := range matching.Windows {
		h.Windows[w] = matching.SlotCounts{}
	}
	h.Windows[12][slot] = 5
	h.Windows[8][slot] = 4
	h.Windows[1][slot] = 1
	return h
}

func TestHistoryRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	week := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)

	if _, ok := c.GetHistory(ctx, "drv-1", week); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.SetHistory(ctx, sampleHistory(week)); err != nil {
		t.Fatalf("SetHistory: %v", err)
	}

	got, ok := c.GetHistory(ctx, "drv-1", week)
	if !ok {
		t.Fatal("expected hit")
	}
	slot := matching.SlotKey{Weekday: time.Monday, Time: "16:30"}
	if got.Count(12, slot) != 5 || got.Count(8, slot) != 4 || got.Count(3, slot) != 0 || got.Count(1, slot) != 1 {
		t.Fatalf("window counts not preserved: %+v", got.Windows)
	}
	if got.WindowSum(slot) != 10 {
		t.Fatalf("WindowSum = %d, want 10", got.WindowSum(slot))
	}
	if got.WeekdayCount(time.Monday) != 5 || got.TotalHistory != 5 {
		t.Fatalf("weekday/total not preserved: %+v", got)
	}
	if !got.CurrentWeekStart.Equal(week) {
		t.Fatalf("week start = %v", got.CurrentWeekStart)
	}
}

func TestInvalidateDriver(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	week := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)

	other := sampleHistory(week)
	other.DriverID = "drv-2"
	for _, h := range []*matching.History{sampleHistory(week), sampleHistory(week.AddDate(0, 0, 7)), other} {
		if err := c.SetHistory(ctx, h); err != nil {
			t.Fatalf("SetHistory: %v", err)
		}
	}
	if err := c.SetWorkload(ctx, models.WorkloadSummary{DriverID: "drv-1", WeekStart: week, DaysWorked: 3}); err != nil {
		t.Fatalf("SetWorkload: %v", err)
	}

	if err := c.InvalidateDriver(ctx, "drv-1"); err != nil {
		t.Fatalf("InvalidateDriver: %v", err)
	}

	if _, ok := c.GetHistory(ctx, "drv-1", week); ok {
		t.Fatal("drv-1 history should be gone")
	}
	if _, ok := c.GetHistory(ctx, "drv-1", week.AddDate(0, 0, 7)); ok {
		t.Fatal("drv-1 next-week history should be gone")
	}
	if _, ok := c.GetWorkload(ctx, "drv-1", week); ok {
		t.Fatal("drv-1 workload should be gone")
	}
	if _, ok := c.GetHistory(ctx, "drv-2", week); !ok {
		t.Fatal("drv-2 history should survive")
	}
}

func TestHistoryExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	week := time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)

	if err := c.SetHistory(ctx, sampleHistory(week)); err != nil {
		t.Fatalf("SetHistory: %v", err)
	}
	mr.FastForward(DefaultHistoryTTL + time.Second)
	if _, ok := c.GetHistory(ctx, "drv-1", week); ok {
		t.Fatal("history should expire after TTL")
	}
}

func TestBreakerTripsOnRedisError(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	if _, ok := c.GetHistory(ctx, "drv-1", time.Now()); ok {
		t.Fatal("expected miss with redis down")
	}
	if c.IsAvailable() {
		t.Fatal("breaker should disable the cache after an error")
	}
	if err := c.SetHistory(ctx, sampleHistory(time.Now())); err != nil {
		t.Fatalf("disabled cache should swallow writes, got %v", err)
	}
}

func TestUnreachableRedisStartsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.IsAvailable() {
		t.Fatal("cache should start disabled")
	}

	var nilCache *Cache
	if nilCache.IsAvailable() {
		t.Fatal("nil cache reports available")
	}
	if _, ok := nilCache.GetHistory(context.Background(), "x", time.Now()); ok {
		t.Fatal("nil cache hit")
	}
}
