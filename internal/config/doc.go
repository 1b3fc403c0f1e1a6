// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package config loads killstream configuration with koanf.

Sources are layered, later ones winning:

 1. built-in defaults (defaultConfig)
 2. an optional YAML file: $CONFIG_PATH, ./config.yaml or /etc/killstream/config.yaml
 3. environment variables listed in envMappings

Example file:

	live:
	  queue_id: my-queue
	archive:
	  gap_threshold: 3
	  resync_threshold: 30
	dedup:
	  retention: 10m
	gating:
	  whale_threshold: 20000000000
	  excluded_locations: [31000005]
	zone:
	  enabled: true
	  url: https://mapper.example.com/api/chain

Environment variable examples: ZKILL_QUEUE_ID, ARCHIVE_GAP_THRESHOLD,
DEDUP_RETENTION=15m, MIN_ISK_FOR_BIG_KILL, INTEL_WEBHOOK_URL, NATS_ENABLED.

Validation combines validate struct tags (go-playground/validator through
internal/validation) with hand-written cross-field checks such as requiring
archive.resync_threshold to exceed archive.gap_threshold.
*/
package config
