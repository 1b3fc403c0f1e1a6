// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package notify delivers kill notifications and status reports to chat
// webhooks.
//
// IntelNotifier and WhaleAnnouncer satisfy the processor's Notifier and
// WhalePoster interfaces. Heartbeat runs on a schedule and reports uptime,
// scan counts, zone size, cache size and memory use. Webhook URLs carry
// credentials, so only the host is ever logged.
package notify
