// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package cache provides the in-memory structures the pipeline relies on.

ClaimGuard is the cross-source deduplication guard: both pollers feed the
same guard and only the first TryClaim for an event id wins. Claims expire
after a configurable retention window and the guard is bounded by capacity.

	guard := cache.NewClaimGuard(10*time.Minute, 100000)
	if !guard.TryClaim(ev.EventID) {
	    return // already taken by the other source
	}

Trie is a case-insensitive prefix tree used by the static location table for
user-facing name search.

Both types are safe for concurrent use.
*/
package cache
