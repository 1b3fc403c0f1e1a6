// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package metrics registers the Prometheus collectors for the pipeline.

Collectors are package-level and registered with the default registry via
promauto, so any package can record without plumbing a registry through
constructors. They are exposed on /metrics by the api package.

# Ingestion

  - killstream_poll_requests_total{source,outcome}
  - killstream_poll_backoff_seconds_total{source,reason}
  - killstream_archive_sequence
  - killstream_archive_transitions_total{action}
  - killstream_normalization_failures_total{source}
  - killstream_dedup_claims_total{source,result}

# Processing

  - killstream_kills_processed_total{result}
  - killstream_processing_duration_seconds
  - killstream_resolver_lookups_total{category,result}
  - killstream_gate_decisions_total{gate}
  - killstream_notifications_total{channel,result}

Upstream HTTP clients report breaker state through circuit_breaker_state and
circuit_breaker_state_transitions_total, labelled by breaker name.
*/
package metrics
