// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package normalize converts raw upstream killmail payloads into
// models.CanonicalEvent.
//
// Three families of payload are recognised:
//
//   - live queue envelopes: {"package": {"killID": .., "zkb": {..}, "killmail": {..}}}
//     and the bare package object without the envelope
//   - flat archive records: {"killmail_id": .., "zkb": {..}, "esi": {..}}
//   - nested archive records: {"zkill": {"killID": .., "zkb": {..}}, "esi": {..}}
//     and {"killmail": {..}, "zkb": {..}}
//
// Each family is detected first and then extracted by its own case, so a new
// upstream shape is one more case rather than another fallback chain.
// Failures are reported as *NormalizationError and match
// ErrNormalizationFailed with errors.Is. The package never panics on input.
package normalize
