// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/killstream/internal/api"
	"github.com/tomtom215/killstream/internal/cache"
	"github.com/tomtom215/killstream/internal/config"
	"github.com/tomtom215/killstream/internal/esi"
	"github.com/tomtom215/killstream/internal/eventbus"
	"github.com/tomtom215/killstream/internal/ingest"
	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/normalize"
	"github.com/tomtom215/killstream/internal/notify"
	"github.com/tomtom215/killstream/internal/processor"
	"github.com/tomtom215/killstream/internal/stats"
	"github.com/tomtom215/killstream/internal/store"
	"github.com/tomtom215/killstream/internal/supervisor"
	"github.com/tomtom215/killstream/internal/supervisor/services"
	"github.com/tomtom215/killstream/internal/websocket"
	"github.com/tomtom215/killstream/internal/zone"
)

// app holds everything main needs to close after the tree stops.
type app struct {
	tree      *supervisor.SupervisorTree
	snapshots store.SnapshotStore
	bus       *eventbus.Publisher
}

func (a *app) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Event bus close failed")
		}
	}
	if err := a.snapshots.Close(); err != nil {
		logging.Error().Err(err).Msg("Snapshot store close failed")
	}
}

func policyFromConfig(g config.GatingConfig) processor.Policy {
	p := processor.DefaultPolicy()
	p.WhaleThreshold = g.WhaleThreshold
	p.WormholeOnly = g.WormholeOnly
	if g.WormholeMin > 0 {
		p.WormholeMin = g.WormholeMin
	}
	if g.WormholeMax > 0 {
		p.WormholeMax = g.WormholeMax
	}
	if g.ExcludedLocations != nil {
		p.Excluded = g.ExcludedLocations
	}
	return p
}

func listenAddr(s config.ServerConfig) string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// build constructs every component and places it in the supervisor tree.
// Snapshots are loaded before anything starts so the first kill already
// sees the warm cache and the persisted total.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	snapshots, err := store.Open(store.Type(cfg.Storage.Type), cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	a := &app{snapshots: snapshots}

	var locations *esi.Locations
	if cfg.Cache.SystemsPath != "" {
		locations, err = esi.LoadLocations(cfg.Cache.SystemsPath)
		if err != nil {
			logging.Warn().Err(err).Str("path", cfg.Cache.SystemsPath).Msg("Static location table not loaded")
		}
	}

	client := esi.NewClient(esi.ClientConfig{
		BaseURL:           cfg.ESI.BaseURL,
		UserAgent:         cfg.ESI.UserAgent,
		CompatibilityDate: cfg.ESI.CompatibilityDate,
		Timeout:           cfg.ESI.Timeout,
		RateLimit:         cfg.ESI.RateLimit,
		Burst:             cfg.ESI.Burst,
		BreakerFailures:   cfg.ESI.BreakerFailures,
		BreakerTimeout:    cfg.ESI.BreakerTimeout,
	})
	resolver := esi.NewResolver(client, snapshots, locations)
	loaded := resolver.Load(ctx)

	tracker := stats.NewTracker(snapshots)
	if err := tracker.Load(ctx); err != nil {
		logging.Warn().Err(err).Msg("Stats snapshot not loaded, starting from zero")
	}
	logging.Info().Int("names", loaded).Int64("total", tracker.Total()).Msg("Snapshots restored")

	hub := websocket.NewHub(tracker.Total)
	deps := processor.Deps{
		Directory: resolver,
		Details:   client,
		Stats:     tracker,
		Dashboard: hub,
	}

	var mapper *zone.Mapper
	if cfg.Zone.Enabled {
		mapper = zone.NewMapper(cfg.Zone.URL, cfg.Zone.Timeout)
		deps.Zones = mapper
	}

	webhook := func(url string) *notify.Webhook {
		return notify.NewWebhook(notify.WebhookConfig{URL: url, Username: "Killstream", Timeout: cfg.Notify.Timeout, PerMinute: 30})
	}
	if hook := webhook(cfg.Notify.IntelWebhookURL); hook.Configured() {
		deps.Notifier = notify.NewIntelNotifier(hook, cfg.Zone.MapURL)
	}
	if hook := webhook(cfg.Notify.WhaleWebhookURL); hook.Configured() {
		deps.Whales = notify.NewWhaleAnnouncer(hook)
	}

	if cfg.NATS.Enabled {
		a.bus, err = eventbus.Connect(eventbus.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Name:          cfg.NATS.Name,
			ReconnectWait: cfg.NATS.ReconnectWait,
			MaxReconnects: cfg.NATS.MaxReconnects,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Bus = a.bus
	}

	proc := processor.New(deps, policyFromConfig(cfg.Gating))
	guard := cache.NewClaimGuard(cfg.Dedup.Retention, cfg.Dedup.Capacity)
	pipeline := ingest.NewPipeline(guard, proc, ingest.PipelineConfig{Workers: cfg.Ingest.Workers, QueueSize: cfg.Ingest.QueueSize})
	normalizer := normalize.New(cfg.ESI.BaseURL)

	a.tree = supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	pollers := addIngest(a.tree, cfg, normalizer, pipeline)
	a.tree.AddIngestService(pipeline)
	a.tree.AddIngestService(services.NewPeriodicService("dedup-sweeper", cfg.Dedup.Sweep(), func(context.Context) error {
		guard.Sweep()
		return nil
	}))
	if mapper != nil {
		a.tree.AddIngestService(services.NewPeriodicService("zone-refresher", cfg.Zone.RefreshInterval, mapper.Refresh, services.RunOnStart()))
	}

	a.tree.AddPersistenceService(services.NewPeriodicService("name-cache-flusher", cfg.Cache.FlushInterval, resolver.Flush,
		services.OnStop(resolver.Flush, 5*time.Second)))
	a.tree.AddPersistenceService(services.NewPeriodicService("stats-flusher", cfg.Stats.FlushInterval, tracker.Flush,
		services.OnStop(tracker.Flush, 5*time.Second)))
	if cfg.Heartbeat.Enabled {
		var zones notify.Sizer
		if mapper != nil {
			zones = notify.SizerFunc(mapper.Count)
		}
		hb := notify.NewHeartbeat(webhook(cfg.Notify.StatusWebhookURL), tracker, zones, resolver)
		a.tree.AddPersistenceService(services.NewPeriodicService("heartbeat", cfg.Heartbeat.Interval, hb.Beat))
	}

	a.tree.AddAPIService(hub)
	if cfg.Server.Enabled {
		apiDeps := api.Deps{
			Pollers: pollers,
			Counter: tracker,
			Names:   resolver,
			Cache:   resolver,
			Dedup:   guard,
			Clients: api.SizerFunc(hub.ClientCount),
		}
		if locations != nil {
			apiDeps.Locations = locations
		}
		if mapper != nil {
			apiDeps.Zones = api.SizerFunc(mapper.Count)
		}
		router := api.NewRouter(api.RouterConfig{
			Handler: api.NewHandler(apiDeps),
			Middleware: api.NewChiMiddleware(&api.ChiMiddlewareConfig{
				CORSAllowedOrigins: cfg.Server.CORSOrigins,
				CORSAllowedMethods: []string{"GET", "OPTIONS"},
				CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
				CORSMaxAge:         86400,
				RateLimitRequests:  cfg.Server.RateLimitReqs,
				RateLimitWindow:    cfg.Server.RateLimitWindow,
			}),
			WebSocket: websocket.Handler(hub, cfg.Server.CORSOrigins),
			StaticDir: cfg.Server.StaticDir,
		})
		addr := listenAddr(cfg.Server)
		server := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.Timeout,
			IdleTimeout:       2 * time.Minute,
		}
		a.tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Supervisor.ShutdownTimeout))
	}
	return a, nil
}

// addIngest adds the enabled pollers and returns them keyed by source for
// the health endpoint.
func addIngest(tree *supervisor.SupervisorTree, cfg *config.Config, n *normalize.Normalizer, sink ingest.Sink) map[string]api.StatusReporter {
	pollers := make(map[string]api.StatusReporter)
	ua := cfg.ESI.UserAgent

	if cfg.Live.Enabled {
		p := ingest.NewLiveTailPoller(ingest.LiveConfig{
			URL:              cfg.Live.URL,
			QueueID:          cfg.Live.QueueID,
			TTW:              cfg.Live.TTW,
			Timeout:          cfg.Live.Timeout,
			RateLimitBackoff: cfg.Live.RateLimitBackoff,
			ErrorBackoff:     cfg.Live.ErrorBackoff,
			UserAgent:        ua,
		}, n, sink, ingest.RealSleeper)
		tree.AddIngestService(p)
		pollers["live"] = p
	}
	if cfg.Archive.Enabled {
		p := ingest.NewArchivePoller(ingest.ArchiveConfig{
			BaseURL:   cfg.Archive.BaseURL,
			Timeout:   cfg.Archive.Timeout,
			UserAgent: ua,
			Policy: ingest.ArchivePolicy{
				PrimeOffset:      cfg.Archive.PrimeOffset,
				GapThreshold:     cfg.Archive.GapThreshold,
				ResyncThreshold:  cfg.Archive.ResyncThreshold,
				GapDelay:         cfg.Archive.GapDelay,
				RateLimitBackoff: cfg.Archive.RateLimitBackoff,
				ErrorBackoff:     cfg.Archive.ErrorBackoff,
				PrimeRetry:       cfg.Archive.PrimeRetry,
			},
		}, n, sink, ingest.RealSleeper)
		tree.AddIngestService(p)
		pollers["archive"] = p
	}
	if cfg.Firehose.Enabled {
		f := ingest.NewFirehoseListener(ingest.FirehoseConfig{
			URL:            cfg.Firehose.URL,
			Channel:        cfg.Firehose.Channel,
			ReconnectDelay: cfg.Firehose.ReconnectDelay,
			UserAgent:      ua,
		}, n, sink, ingest.RealSleeper)
		tree.AddIngestService(f)
		pollers["firehose"] = f
	}
	return pollers
}
