/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-backed cache for per-driver slot history
// and weekly workload summaries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/haulroster/internal/matching"
	"github.com/friendsincode/haulroster/internal/models"
	"github.com/friendsincode/haulroster/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values.
const (
	DefaultHistoryTTL  = 15 * time.Minute
	DefaultWorkloadTTL = 5 * time.Minute
)

// Key prefixes. Keys end in driver_id:week_start.
const (
	KeyHistory  = "haulroster:cache:history:"
	KeyWorkload = "haulroster:cache:workload:"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HistoryTTL  time.Duration
	WorkloadTTL time.Duration

	// DisableOnError trips the breaker on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		HistoryTTL:     DefaultHistoryTTL,
		WorkloadTTL:    DefaultWorkloadTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache
// behaves as a permanently disabled cache.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = DefaultHistoryTTL
	}
	if cfg.WorkloadTTL <= 0 {
		cfg.WorkloadTTL = DefaultWorkloadTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logger.With().Str("component", "cache").Logger()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{logger: log, config: cfg, disabled: true}, nil
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: log, config: cfg}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")
	telemetry.HistoryCacheRequestsTotal.WithLabelValues("error").Inc()

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func weekKey(prefix, driverID string, weekStart time.Time) string {
	return prefix + driverID + ":" + weekStart.Format(time.RFC3339)
}

// cachedSlot is one (window, slot) count; SlotKey is not a valid JSON map key.
type cachedSlot struct {
	Weeks   int          `json:"weeks"`
	Weekday time.Weekday `json:"weekday"`
	Time    string       `json:"time"`
	Count   int          `json:"count"`
}

type cachedHistory struct {
	DriverID         string               `json:"driver_id"`
	CurrentWeekStart time.Time            `json:"current_week_start"`
	Slots            []cachedSlot         `json:"slots"`
	WeekdayCounts    map[time.Weekday]int `json:"weekday_counts"`
	TotalHistory     int                  `json:"total_history"`
}

func encodeHistory(h *matching.History) cachedHistory {
	out := cachedHistory{
		DriverID:         h.DriverID,
		CurrentWeekStart: h.CurrentWeekStart,
		WeekdayCounts:    h.WeekdayCounts,
		TotalHistory:     h.TotalHistory,
	}
	for weeks, counts := range h.Windows {
		for k, n := range counts {
			out.Slots = append(out.Slots, cachedSlot{Weeks: weeks, Weekday: k.Weekday, Time: k.Time, Count: n})
		}
	}
	sort.Slice(out.Slots, func(i, j int) bool {
		a, b := out.Slots[i], out.Slots[j]
		if a.Weeks != b.Weeks {
			return a.Weeks > b.Weeks
		}
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.Time < b.Time
	})
	return out
}

func (ch cachedHistory) decode() *matching.History {
	h := &matching.History{
		DriverID:         ch.DriverID,
		CurrentWeekStart: ch.CurrentWeekStart,
		Windows:          make(map[int]matching.SlotCounts, len(matching.Windows)),
		WeekdayCounts:    ch.WeekdayCounts,
		TotalHistory:     ch.TotalHistory,
	}
	for _, w := range matching.Windows {
		h.Windows[w] = make(matching.SlotCounts)
	}
	if h.WeekdayCounts == nil {
		h.WeekdayCounts = make(map[time.Weekday]int)
	}
	for _, s := range ch.Slots {
		counts, ok := h.Windows[s.Weeks]
		if !ok {
			counts = make(matching.SlotCounts)
			h.Windows[s.Weeks] = counts
		}
		counts[matching.SlotKey{Weekday: s.Weekday, Time: s.Time}] = s.Count
	}
	return h
}

// GetHistory returns a driver's cached slot history for a week.
func (c *Cache) GetHistory(ctx context.Context, driverID string, weekStart time.Time) (*matching.History, bool) {
	if !c.IsAvailable() {
		return nil, false
	}
	var ch cachedHistory
	found, err := c.get(ctx, weekKey(KeyHistory, driverID, weekStart), &ch)
	if err != nil || !found {
		if err == nil {
			telemetry.HistoryCacheRequestsTotal.WithLabelValues("miss").Inc()
		}
		return nil, false
	}
	telemetry.HistoryCacheRequestsTotal.WithLabelValues("hit").Inc()
	c.logger.Debug().Str("driver_id", driverID).Msg("history cache hit")
	return ch.decode(), true
}

// SetHistory caches a driver's slot history under its week start.
func (c *Cache) SetHistory(ctx context.Context, h *matching.History) error {
	if h == nil || !c.IsAvailable() {
		return nil
	}
	return c.set(ctx, weekKey(KeyHistory, h.DriverID, h.CurrentWeekStart), encodeHistory(h), c.config.HistoryTTL)
}

// GetWorkload returns a cached weekly workload summary.
func (c *Cache) GetWorkload(ctx context.Context, driverID string, weekStart time.Time) (models.WorkloadSummary, bool) {
	var ws models.WorkloadSummary
	found, err := c.get(ctx, weekKey(KeyWorkload, driverID, weekStart), &ws)
	if err != nil || !found {
		return models.WorkloadSummary{}, false
	}
	return ws, true
}

// SetWorkload caches a weekly workload summary.
func (c *Cache) SetWorkload(ctx context.Context, ws models.WorkloadSummary) error {
	return c.set(ctx, weekKey(KeyWorkload, ws.DriverID, ws.WeekStart), ws, c.config.WorkloadTTL)
}

// InvalidateDriver drops every cached entry for a driver. Called whenever
// one of the driver's assignments changes.
func (c *Cache) InvalidateDriver(ctx context.Context, driverID string) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Str("driver_id", driverID).Msg("invalidating driver caches")
	if err := c.deletePattern(ctx, KeyHistory+driverID+":*"); err != nil {
		return err
	}
	return c.deletePattern(ctx, KeyWorkload+driverID+":*")
}
