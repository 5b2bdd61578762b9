// Cinematch - Movie Recommendation Engine
// Copyright 2026 Cinematch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmawebb/cinematch

// Package metrics exposes Prometheus instrumentation for the engine:
// recommendation runs, candidate strategies, the external metadata
// client, embedding builds, and database queries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation run metrics

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_runs_total",
			Help: "Recommendation runs by terminal status",
		},
		[]string{"status"}, // "completed", "failed"
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinematch_run_duration_seconds",
			Help:    "Wall time of recommendation runs",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	RunsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinematch_runs_pending",
			Help: "Runs currently waiting for a worker",
		},
	)

	RunsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_runs_reaped_total",
			Help: "Stale in_progress runs failed by the janitor",
		},
	)

	// Candidate strategy metrics

	StrategyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_strategy_results_total",
			Help: "Candidate strategy outcomes",
		},
		[]string{"strategy", "outcome"}, // outcome: "ok", "error"
	)

	StrategyCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_strategy_candidates_total",
			Help: "Candidates contributed per strategy before dedup",
		},
		[]string{"strategy"},
	)

	// External client metrics

	ExternalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_external_requests_total",
			Help: "Requests to the external metadata API",
		},
		[]string{"endpoint", "status"}, // status: "ok", "auth", "not_found", "rate_limited", "server", "error"
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_external_request_duration_seconds",
			Help:    "Latency of external metadata API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ExternalRateGateWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinematch_external_rate_gate_wait_seconds",
			Help:    "Time spent waiting on the outbound rate gate",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinematch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Embedding metrics

	EmbeddingBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_embedding_builds_total",
			Help: "Vector builds by kind",
		},
		[]string{"kind"}, // "movie", "user"
	)

	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_embedding_cache_hits_total",
			Help: "Embedding cache lookups that returned a stored vector",
		},
		[]string{"kind"},
	)

	EmbeddingCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_embedding_cache_misses_total",
			Help: "Embedding cache lookups that required a rebuild",
		},
		[]string{"kind"},
	)

	// Database metrics

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_db_query_errors_total",
			Help: "DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinematch_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// ObserveDBQuery records one database query with its duration, and the
// error counter when err is non-nil.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordStrategy records a strategy outcome and its candidate count.
func RecordStrategy(name string, candidates int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StrategyResults.WithLabelValues(name, outcome).Inc()
	if candidates > 0 {
		StrategyCandidates.WithLabelValues(name).Add(float64(candidates))
	}
}
