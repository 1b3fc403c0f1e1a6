// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package supervisor owns the suture supervision tree.

Every long-running part of killstream is a suture.Service placed in one of
three layers. Suture restarts a failing service with backoff; a service
that returns an error wrapping suture.ErrDoNotRestart (a poller with a
missing endpoint, for example) is removed instead of restarted.

Supervisor events are logged through sutureslog, which writes to the
zerolog-backed slog handler from internal/logging:

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddIngestService(livePoller)
	tree.AddAPIService(hub)
	err := tree.Serve(ctx)
*/
package supervisor
