// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package ingest pulls killmails from upstream sources and hands them to the
processor exactly once.

# Sources

Each source is a suture.Service owning its own cursor and recovery state:

  - LiveTailPoller long-polls the live queue. Rate limits and errors back
    off; an empty hold is re-polled immediately.
  - ArchivePoller walks the sequential archive. Its ArchiveMachine decides
    when to retry a missing slot, when to skip a gap and when the cursor is
    lost and must be re-primed from the published sequence number.
  - FirehoseListener subscribes to the push websocket feed.

A source with no endpoint configured returns ErrFatalConfiguration wrapped
in suture.ErrDoNotRestart, which stops that source without affecting the
others.

# Pipeline

All sources submit into one Pipeline. Submit claims the event id in the
shared cache.ClaimGuard; a kill already claimed by another source is
dropped. Claimed kills queue for a fixed worker pool that calls the
Processor, and each kill's failures are logged and contained there.
*/
package ingest
