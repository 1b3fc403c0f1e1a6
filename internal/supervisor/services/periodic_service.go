// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/killstream/internal/logging"
)

// TickFunc is one run of a periodic job.
type TickFunc func(ctx context.Context) error

// PeriodicService runs a job on a fixed interval. A failing tick is logged
// and the schedule continues; the service itself only returns on shutdown.
//
// Example usage:
//
//	flusher := services.NewPeriodicService("stats-flusher", time.Minute, tracker.Flush,
//	    services.OnStop(tracker.Flush, 5*time.Second))
//	tree.AddPersistenceService(flusher)
type PeriodicService struct {
	name     string
	interval time.Duration
	tick     TickFunc

	runOnStart bool
	onStop     TickFunc
	stopBudget time.Duration
}

// PeriodicOption configures a PeriodicService.
type PeriodicOption func(*PeriodicService)

// RunOnStart runs the job once before the first interval elapses.
func RunOnStart() PeriodicOption {
	return func(p *PeriodicService) { p.runOnStart = true }
}

// OnStop runs fn once during shutdown with a fresh context bounded by
// budget, so a final flush still happens after cancellation.
func OnStop(fn TickFunc, budget time.Duration) PeriodicOption {
	return func(p *PeriodicService) {
		p.onStop = fn
		p.stopBudget = budget
	}
}

// NewPeriodicService returns a service that calls tick every interval.
func NewPeriodicService(name string, interval time.Duration, tick TickFunc, opts ...PeriodicOption) *PeriodicService {
	p := &PeriodicService{name: name, interval: interval, tick: tick, stopBudget: 5 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	if p.interval <= 0 {
		p.interval = time.Minute
	}
	return p
}

// Serve implements suture.Service.
//
// This method:
//  1. Runs the job once immediately when RunOnStart was given
//  2. Runs the job on every tick until ctx is done
//  3. Runs the OnStop function, if any, with a fresh context
//  4. Returns ctx.Err()
func (p *PeriodicService) Serve(ctx context.Context) error {
	log := logging.WithComponent(p.name)
	if p.runOnStart {
		p.run(ctx, &log)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.stop(&log)
			return ctx.Err()
		case <-ticker.C:
			p.run(ctx, &log)
		}
	}
}

func (p *PeriodicService) run(ctx context.Context, log *zerolog.Logger) {
	start := time.Now()
	if err := p.tick(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Dur("took", time.Since(start)).Msg("Periodic job failed")
		return
	}
	log.Debug().Dur("took", time.Since(start)).Msg("Periodic job finished")
}

func (p *PeriodicService) stop(log *zerolog.Logger) {
	if p.onStop == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.stopBudget)
	defer cancel()
	if err := p.onStop(ctx); err != nil {
		log.Error().Err(err).Msg("Final run failed")
	}
}

func (p *PeriodicService) String() string { return p.name }
