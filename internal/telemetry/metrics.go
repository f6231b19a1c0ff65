/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics.
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_api_requests_total",
		Help: "Total HTTP requests by method, route and status.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "haulroster_api_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haulroster_api_active_connections",
		Help: "In-flight HTTP requests.",
	})
)

// Database metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "haulroster_database_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_database_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haulroster_database_connections_active",
		Help: "Open database connections.",
	})
)

// Dispatch metrics.
var (
	ComplianceEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_compliance_evaluations_total",
		Help: "Compliance evaluations by resulting status.",
	}, []string{"status"})

	RankingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "haulroster_ranking_duration_seconds",
		Help:    "Time spent ranking swap candidates for a block.",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	RankingPoolSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "haulroster_ranking_pool_size",
		Help:    "Number of drivers considered per ranking request.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	AssignmentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_assignments_created_total",
		Help: "Assignments persisted by validation status.",
	}, []string{"status"})

	AssignmentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_assignments_rejected_total",
		Help: "Assignment attempts refused by reason.",
	}, []string{"reason"})

	AssignmentLockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "haulroster_assignment_lock_wait_seconds",
		Help:    "Time spent waiting for the per-block assignment lock.",
		Buckets: []float64{.0001, .001, .01, .1, .5, 1, 5, 10},
	})

	HistoryCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_history_cache_requests_total",
		Help: "Slot history cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_events_published_total",
		Help: "Domain events published by type and transport.",
	}, []string{"type", "transport"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haulroster_events_dropped_total",
		Help: "Events dropped because a local subscriber's buffer was full.",
	}, []string{"type"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
