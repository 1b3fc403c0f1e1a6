// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package logging provides the process-wide zerolog logger.
//
// Initialize once from main:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
// Then log through the package helpers or a component logger:
//
//	logging.Info().Int64("sequence", seq).Msg("archive primed")
//	lg := logging.WithComponent("resolver")
//	lg.Warn().Str("category", "type").Int64("id", id).Msg("lookup failed")
//
// Events flowing through the pipeline carry a correlation id and the kill id
// on their context; logging.Ctx(ctx) attaches both to each line.
//
// Always terminate an entry with Msg or Send, otherwise nothing is written.
package logging
