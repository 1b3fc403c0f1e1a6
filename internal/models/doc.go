// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package models defines the data types shared across the killstream pipeline.

Key types:

  - CanonicalEvent: the single internal shape every upstream payload is
    normalized into before dedup and enrichment.
  - Killmail: the detail payload (victim, attackers, location) as served by
    the upstream detail API or pre-bundled by the archive feed.
  - Category: identifier namespaces cached by the resolver.
  - KillSummary: the enriched display record pushed to dashboard clients,
    webhook consumers and the event bus.
  - StatsSnapshot: the persisted lifetime counters.
  - APIResponse: the envelope every HTTP endpoint responds with.

Types in this package carry no behaviour beyond small accessors; the
packages that own the corresponding logic live alongside (normalize,
esi, processor, stats).
*/
package models
