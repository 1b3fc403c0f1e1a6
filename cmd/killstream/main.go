// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package main runs the killstream pipeline.
//
// Kills arrive from up to three sources (the live-tail queue, the sequential
// archive and the optional push firehose), are claimed once by the dedup
// guard, enriched with names and zone membership, then fanned out to the
// dashboard socket, the webhooks and NATS.
//
// # Startup
//
//  1. Configuration: defaults, config file, then environment (Koanf v2)
//  2. Snapshots: name cache and counters are restored from file or BadgerDB
//  3. Collaborators: zone mapper, webhooks and NATS when configured
//  4. Supervisor tree: ingest, persistence and API layers (suture v4)
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the tree. Flushers write a final snapshot on the
// way down, the HTTP server drains, then NATS and the store are closed.
//
// # Example Usage
//
//	export ESI_USER_AGENT="killstream/1.0 (ops@example.com)"
//	export INTEL_WEBHOOK_URL=https://discord.com/api/webhooks/...
//	export ZONE_ENABLED=true ZONE_URL=https://mapper.example.com/api/chain
//	./killstream
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/killstream/internal/config"
	"github.com/tomtom215/killstream/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	logging.Info().
		Bool("live", cfg.Live.Enabled).
		Bool("archive", cfg.Archive.Enabled).
		Bool("firehose", cfg.Firehose.Enabled).
		Bool("zone", cfg.Zone.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Str("storage", cfg.Storage.Type).
		Msg("Starting killstream")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := build(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := a.tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := a.tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Killstream stopped")
}
