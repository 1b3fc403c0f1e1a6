// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package esi resolves numeric identifiers through the public identifier
service and keeps the answers in a persisted, write-once cache.

# Components

  - Client: HTTP access with a token-bucket rate limiter (x/time/rate) and a
    circuit breaker (sony/gobreaker). Non-2xx responses surface as
    *StatusError so callers can tell 404 from 429 from 5xx.
  - Resolver: per-category name cache. Concurrent misses for one key are
    coalesced with singleflight. Failed lookups return models.UnknownName
    and are not cached. Flush writes a snapshot through store.SnapshotStore
    only when something changed; Load restores it on start.
  - Locations: the static location table with prefix search over a trie
    and a Levenshtein-ranked fallback for near misses.

Region names follow the location's region id, or its constellation's
region when only the constellation is known. Locations without either are
labelled RegionFallback.
*/
package esi
