// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

/*
Package websocket pushes processed kills to live dashboards.

The Hub owns the set of connected clients and a buffered broadcast queue.
It satisfies the processor's Dashboard interface, so every kill the
processor finishes is followed by three messages:

  - raw-kill: the full kill summary
  - gatekeeper-stats: {"totalScanned": n}
  - perf-stats: {"killID": id, "latency": ms}

A dashboard that connects is greeted with a gatekeeper-stats message
carrying the lifetime total, so counters render before the next kill.

Each Client runs a read pump that answers {"type":"ping"} with a pong and a
write pump that sends queued messages plus protocol pings. Clients whose
send buffer fills are disconnected.

Usage:

	hub := websocket.NewHub(tracker.Total)
	supervisor.Add(hub)
	router.Handle("/ws", websocket.Handler(hub, cfg.Server.CORSOrigins))
*/
package websocket
