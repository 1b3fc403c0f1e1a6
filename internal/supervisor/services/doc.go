// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package services adapts long-running components to suture.Service.

HTTPServerService turns the blocking ListenAndServe/Shutdown pair into a
context-driven Serve. PeriodicService drives interval jobs: the dedup
sweep, name cache and stats flushes, zone refresh and the heartbeat.

Components that already expose Serve(ctx) error and String() (pollers, the
pipeline, the dashboard hub) are added to the tree directly.

	tree.AddPersistenceService(services.NewPeriodicService(
	    "stats-flusher", 30*time.Second, tracker.Flush,
	    services.OnStop(tracker.Flush, 5*time.Second),
	))
*/
package services
