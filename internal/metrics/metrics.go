// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	PollRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_poll_requests_total",
			Help: "Upstream poll requests by source and outcome",
		},
		[]string{"source", "outcome"}, // outcome: found, empty, not_found, rate_limited, error
	)

	PollBackoffSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_poll_backoff_seconds_total",
			Help: "Cumulative time pollers spent sleeping after a non-success outcome",
		},
		[]string{"source", "reason"},
	)

	ArchiveSequence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "killstream_archive_sequence",
			Help: "Current archive cursor",
		},
	)

	ArchiveTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_archive_transitions_total",
			Help: "Archive recovery actions taken",
		},
		[]string{"action"}, // advance, gap_skip, retry, resync, primed
	)

	NormalizationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_normalization_failures_total",
			Help: "Payloads that could not be normalized, by source",
		},
		[]string{"source"},
	)

	DedupClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_dedup_claims_total",
			Help: "Dedup guard decisions by source",
		},
		[]string{"source", "result"}, // result: claimed, duplicate
	)

	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "killstream_dedup_entries",
			Help: "Event ids currently held by the dedup guard",
		},
	)

	// Processing Metrics
	KillsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_kills_processed_total",
			Help: "Kills that completed processing, by result",
		},
		[]string{"result"}, // ok, no_location
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "killstream_processing_duration_seconds",
			Help:    "Time from dispatch to display record push",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	DetailFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_detail_fetches_total",
			Help: "Detail payload lookups by result",
		},
		[]string{"result"},
	)

	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "killstream_workers_busy",
			Help: "Pipeline workers currently processing a kill",
		},
	)

	// Identifier Cache Metrics
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_resolver_lookups_total",
			Help: "Identifier lookups by category and result",
		},
		[]string{"category", "result"}, // result: hit, miss, error, sentinel
	)

	ResolverEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "killstream_resolver_entries",
			Help: "Cached identifiers per category",
		},
		[]string{"category"},
	)

	SnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_snapshot_writes_total",
			Help: "Snapshot flushes by key and result",
		},
		[]string{"key", "result"},
	)

	// Gating and Notification Metrics
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_gate_decisions_total",
			Help: "Kills routed by gate",
		},
		[]string{"gate"}, // whale, zone
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "killstream_notifications_total",
			Help: "Outbound notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	ZoneLocations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "killstream_zone_locations",
			Help: "Locations currently in the zone of interest",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of active API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages broadcast",
		},
		[]string{"type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// NATS Metrics
	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
		[]string{"result"},
	)
)

// RecordPoll records one upstream poll outcome.
func RecordPoll(source, outcome string) {
	PollRequests.WithLabelValues(source, outcome).Inc()
}

// RecordBackoff records a poller sleep.
func RecordBackoff(source, reason string, d time.Duration) {
	PollBackoffSeconds.WithLabelValues(source, reason).Add(d.Seconds())
}

// RecordClaim records a dedup guard decision.
func RecordClaim(source string, claimed bool) {
	result := "duplicate"
	if claimed {
		result = "claimed"
	}
	DedupClaims.WithLabelValues(source, result).Inc()
}

// RecordProcessed records a finished kill and its latency.
func RecordProcessed(result string, duration time.Duration) {
	KillsProcessed.WithLabelValues(result).Inc()
	if result == "ok" {
		ProcessingDuration.Observe(duration.Seconds())
	}
}

// RecordLookup records an identifier lookup.
func RecordLookup(category, result string) {
	ResolverLookups.WithLabelValues(category, result).Inc()
}

// RecordNotification records an outbound notification attempt.
func RecordNotification(channel string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	NotificationsSent.WithLabelValues(channel, result).Inc()
}

// RecordSnapshot records a snapshot flush.
func RecordSnapshot(key string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SnapshotWrites.WithLabelValues(key, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
