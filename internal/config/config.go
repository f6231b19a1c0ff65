/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string

	// Tenant calendar used for Sunday-Saturday weeks and service dates.
	Timezone string
	Location *time.Location

	// Engine configuration
	CanonicalTimesFile     string // optional YAML override for canonical start times
	RankingWorkers         int
	RequireContractMatch   bool // only rank drivers whose contract matches the block
	AllowViolationOverride bool // permit forced assignments that fail compliance
	HistoryCacheEnabled    bool
	HistoryCacheTTL        time.Duration
	AssignmentLockTimeout  time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Redis (history cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Assignment event fan-out: memory, redis or nats
	EventBackend      string
	NATSURL           string
	NATSSubjectPrefix string

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"HAULROSTER_ENV", "HR_ENV"}, "development"),
		LogLevel:    getEnvAny([]string{"HAULROSTER_LOG_LEVEL", "HR_LOG_LEVEL"}, ""),
		HTTPBind:    getEnvAny([]string{"HAULROSTER_HTTP_BIND", "HR_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"HAULROSTER_HTTP_PORT", "HR_HTTP_PORT"}, 8080),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"HAULROSTER_DB_BACKEND", "HR_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:       getEnvAny([]string{"HAULROSTER_DB_DSN", "HR_DB_DSN"}, ""),
		Timezone:    getEnvAny([]string{"HAULROSTER_TIMEZONE", "HR_TIMEZONE"}, "America/Chicago"),

		CanonicalTimesFile:     getEnvAny([]string{"HAULROSTER_CANONICAL_TIMES_FILE", "HR_CANONICAL_TIMES_FILE"}, ""),
		RankingWorkers:         getEnvIntAny([]string{"HAULROSTER_RANKING_WORKERS", "HR_RANKING_WORKERS"}, 8),
		RequireContractMatch:   getEnvBoolAny([]string{"HAULROSTER_REQUIRE_CONTRACT_MATCH", "HR_REQUIRE_CONTRACT_MATCH"}, false),
		AllowViolationOverride: getEnvBoolAny([]string{"HAULROSTER_ALLOW_VIOLATION_OVERRIDE", "HR_ALLOW_VIOLATION_OVERRIDE"}, false),
		HistoryCacheEnabled:    getEnvBoolAny([]string{"HAULROSTER_CACHE_ENABLED", "HR_CACHE_ENABLED"}, false),
		HistoryCacheTTL:        time.Duration(getEnvIntAny([]string{"HAULROSTER_HISTORY_CACHE_TTL_MINUTES", "HR_HISTORY_CACHE_TTL_MINUTES"}, 15)) * time.Minute,
		AssignmentLockTimeout:  time.Duration(getEnvIntAny([]string{"HAULROSTER_ASSIGNMENT_LOCK_TIMEOUT_SECONDS", "HR_ASSIGNMENT_LOCK_TIMEOUT_SECONDS"}, 10)) * time.Second,

		// Tracing configuration
		TracingEnabled:    getEnvBoolAny([]string{"HAULROSTER_TRACING_ENABLED", "HR_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"HAULROSTER_OTLP_ENDPOINT", "HR_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"HAULROSTER_TRACING_SAMPLE_RATE", "HR_TRACING_SAMPLE_RATE"}, 1.0),

		RedisAddr:     getEnvAny([]string{"HAULROSTER_REDIS_ADDR", "HR_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"HAULROSTER_REDIS_PASSWORD", "HR_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"HAULROSTER_REDIS_DB", "HR_REDIS_DB"}, 0),

		EventBackend:      strings.ToLower(getEnvAny([]string{"HAULROSTER_EVENT_BACKEND", "HR_EVENT_BACKEND"}, "memory")),
		NATSURL:           getEnvAny([]string{"HAULROSTER_NATS_URL", "HR_NATS_URL"}, ""),
		NATSSubjectPrefix: getEnvAny([]string{"HAULROSTER_NATS_SUBJECT_PREFIX", "HR_NATS_SUBJECT_PREFIX"}, "haulroster.events"),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("HAULROSTER_DB_DSN or HR_DB_DSN must be provided")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if cfg.RankingWorkers <= 0 {
		return nil, fmt.Errorf("HAULROSTER_RANKING_WORKERS must be positive, got %d", cfg.RankingWorkers)
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("HAULROSTER_TRACING_SAMPLE_RATE must be between 0 and 1, got %v", cfg.TracingSampleRate)
	}

	switch cfg.EventBackend {
	case "memory", "redis":
	case "nats":
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("HAULROSTER_NATS_URL is required when the event backend is nats")
		}
	default:
		return nil, fmt.Errorf("unsupported event backend %q", cfg.EventBackend)
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.AllowViolationOverride {
		cfg.LegacyEnvWarnings = append(cfg.LegacyEnvWarnings, "HAULROSTER_ALLOW_VIOLATION_OVERRIDE is enabled in production; forced assignments may break duty-hour rules")
	}
	cfg.LegacyEnvWarnings = append(cfg.LegacyEnvWarnings, detectLegacyEnvWarnings()...)

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":         "use HAULROSTER_ENV (or HR_ENV)",
		"DATABASE_URL":        "use HAULROSTER_DB_DSN (or HR_DB_DSN)",
		"REDIS_URL":           "use HAULROSTER_REDIS_ADDR (or HR_REDIS_ADDR)",
		"TRACING_ENABLED":     "use HAULROSTER_TRACING_ENABLED (or HR_TRACING_ENABLED)",
		"OTLP_ENDPOINT":       "use HAULROSTER_OTLP_ENDPOINT (or HR_OTLP_ENDPOINT)",
		"TRACING_SAMPLE_RATE": "use HAULROSTER_TRACING_SAMPLE_RATE (or HR_TRACING_SAMPLE_RATE)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the bind address for the API listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
