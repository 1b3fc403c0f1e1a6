// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/tomtom215/killstream/internal/cache"
	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
)

// Sink receives normalized events from the pollers.
type Sink interface {
	Submit(ctx context.Context, ev *models.CanonicalEvent) error
}

// Processor enriches and dispatches one claimed event.
type Processor interface {
	Process(ctx context.Context, ev *models.CanonicalEvent) error
}

// PipelineConfig sizes the worker pool.
type PipelineConfig struct {
	Workers   int
	QueueSize int
}

// Pipeline is the single hand-off point between sources and the processor.
// Every event passes the claim guard first, so a kill seen by several
// sources is processed once. Claimed events queue for a fixed pool of
// workers; Submit blocks while the queue is full, which slows the pollers
// instead of dropping events.
type Pipeline struct {
	guard     *cache.ClaimGuard
	processor Processor
	workers   int
	queue     chan *models.CanonicalEvent
}

// NewPipeline returns a pipeline. Serve must run for queued events to be
// processed.
func NewPipeline(guard *cache.ClaimGuard, processor Processor, cfg PipelineConfig) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Pipeline{
		guard:     guard,
		processor: processor,
		workers:   cfg.Workers,
		queue:     make(chan *models.CanonicalEvent, cfg.QueueSize),
	}
}

// Submit claims ev and queues it. A duplicate is dropped silently.
func (p *Pipeline) Submit(ctx context.Context, ev *models.CanonicalEvent) error {
	if ev == nil || ev.EventID <= 0 {
		return nil
	}
	claimed := p.guard.TryClaim(ev.EventID)
	metrics.RecordClaim(string(ev.Source), claimed)
	if !claimed {
		logging.Debug().Int64("kill_id", ev.EventID).Str("source", string(ev.Source)).Msg("Duplicate event dropped")
		return nil
	}

	select {
	case p.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the worker pool until ctx is cancelled.
func (p *Pipeline) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	logging.Info().Int("workers", p.workers).Msg("Pipeline started")
	wg.Wait()
	return ctx.Err()
}

func (p *Pipeline) String() string { return "pipeline" }

// Pending returns the number of queued events.
func (p *Pipeline) Pending() int { return len(p.queue) }

func (p *Pipeline) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.handle(ctx, worker, ev)
		}
	}
}

// handle contains every failure of one event, panics included.
func (p *Pipeline) handle(ctx context.Context, worker int, ev *models.CanonicalEvent) {
	ctx = logging.ContextWithKillID(logging.ContextWithNewCorrelationID(ctx), ev.EventID)
	log := logging.Ctx(ctx)

	metrics.WorkersBusy.Inc()
	defer metrics.WorkersBusy.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Int("worker", worker).
				Msg("Processor panicked")
		}
	}()

	start := time.Now()
	if err := p.processor.Process(ctx, ev); err != nil {
		log.Error().Err(err).Str("source", string(ev.Source)).Msg("Kill processing failed")
		return
	}
	log.Debug().Dur("elapsed", time.Since(start)).Str("source", string(ev.Source)).Msg("Kill processed")
}
