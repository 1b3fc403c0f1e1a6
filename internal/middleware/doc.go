// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package middleware holds the HTTP middleware shared by the API router:
// request ids tied into the logging context, and Prometheus request
// instrumentation labelled by route pattern.
package middleware
