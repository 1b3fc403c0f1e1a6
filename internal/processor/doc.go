// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package processor turns a claimed CanonicalEvent into a KillSummary and
routes it.

For each kill the Processor:

 1. Fetches the detail payload when the envelope did not bundle one. A
    failed fetch is not fatal.
 2. Drops the kill with ErrNoLocation if no location id is known.
 3. Resolves ship, victim, corporation, alliance, system and region names
    concurrently through the Directory.
 4. Counts the kill and pushes the summary, the running total and the
    processing latency to the Dashboard.
 5. Applies the Policy: a kill in an eligible zone location goes to the
    Notifier, a kill at or above the whale threshold goes to the
    WhalePoster. Both may fire for one kill.
 6. Publishes the summary on the event bus when one is configured.

Notification failures are logged and counted; they never fail the kill.
*/
package processor
