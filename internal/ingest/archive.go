// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/normalize"
)

// ArchiveConfig configures the sequential archive source.
type ArchiveConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Policy    ArchivePolicy
}

// ArchivePoller replays the archive one sequence slot at a time. All
// recovery decisions come from its ArchiveMachine.
type ArchivePoller struct {
	base       string
	userAgent  string
	client     *http.Client
	normalizer *normalize.Normalizer
	sink       Sink
	sleeper    Sleeper
	now        func() time.Time

	mu        sync.Mutex
	machine   *ArchiveMachine
	received  int64
	malformed int64
	running   bool
}

// NewArchivePoller returns a poller feeding sink. A nil sleeper selects
// RealSleeper.
func NewArchivePoller(cfg ArchiveConfig, normalizer *normalize.Normalizer, sink Sink, sleeper Sleeper) *ArchivePoller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if sleeper == nil {
		sleeper = RealSleeper
	}
	return &ArchivePoller{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		client:     &http.Client{Timeout: cfg.Timeout},
		normalizer: normalizer,
		sink:       sink,
		sleeper:    sleeper,
		now:        time.Now,
		machine:    NewArchiveMachine(cfg.Policy),
	}
}

func (p *ArchivePoller) String() string { return "archive-poller" }

// Serve replays the archive until ctx is cancelled.
func (p *ArchivePoller) Serve(ctx context.Context) error {
	if p.base == "" {
		return fatalConfig(p.String(), "archive base url is required")
	}

	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logging.Info().Str("base_url", p.base).Msg("Archive poller started")

	for ctx.Err() == nil {
		step := p.Step(ctx)
		if step.Delay <= 0 {
			continue
		}
		metrics.RecordBackoff(string(models.SourceArchive), string(step.Action), step.Delay)
		if err := p.sleeper.Sleep(ctx, step.Delay); err != nil {
			break
		}
	}
	return ctx.Err()
}

// Step performs one request for the machine's current state and returns
// the machine's decision.
func (p *ArchivePoller) Step(ctx context.Context) Step {
	p.mu.Lock()
	state := p.machine.State()
	cursor := p.machine.Cursor()
	p.mu.Unlock()

	var step Step
	if state == models.StatePriming {
		step = p.prime(ctx)
	} else {
		step = p.poll(ctx, cursor)
	}
	metrics.ArchiveTransitions.WithLabelValues(string(step.Action)).Inc()
	return step
}

func (p *ArchivePoller) prime(ctx context.Context) Step {
	status, body, err := get(ctx, p.client, p.base+"/sequence.json", p.userAgent)
	outcome := Classify(status, err)
	if ctx.Err() != nil {
		return Step{Action: ActionError}
	}

	var latest int64
	if outcome == OutcomeFound {
		latest, err = parseSequence(body)
		if err != nil {
			outcome = OutcomeError
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if outcome != OutcomeFound {
		logging.Warn().Err(err).Int("status", status).Str("outcome", outcome.String()).
			Msg("Archive sequence lookup failed")
		return p.machine.PrimeFailed(outcome, p.now())
	}
	step := p.machine.Primed(latest, p.now())
	metrics.ArchiveSequence.Set(float64(p.machine.Cursor()))
	logging.Info().Int64("latest", latest).Int64("cursor", p.machine.Cursor()).Msg("Archive cursor primed")
	return step
}

func (p *ArchivePoller) poll(ctx context.Context, cursor int64) Step {
	url := p.base + "/" + strconv.FormatInt(cursor, 10) + ".json"
	status, body, err := get(ctx, p.client, url, p.userAgent)
	if ctx.Err() != nil {
		return Step{Action: ActionError}
	}
	outcome := Classify(status, err)
	metrics.RecordPoll(string(models.SourceArchive), outcome.String())

	if outcome == OutcomeFound {
		// A slot that exists is consumed even when its record is unusable.
		if err := p.deliver(ctx, cursor, body); err != nil {
			return Step{Action: ActionError}
		}
	} else if outcome == OutcomeError {
		logging.Warn().Err(err).Int("status", status).Int64("sequence", cursor).Msg("Archive poll failed")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	step := p.machine.Observe(outcome, p.now())
	switch step.Action {
	case ActionGapSkip:
		logging.Debug().Int64("skipped", cursor).Msg("Archive gap skipped")
	case ActionResync:
		logging.Warn().Int64("sequence", cursor).Msg("Archive cursor lost, re-priming")
	case ActionRateLimited:
		logging.Warn().Dur("backoff", step.Delay).Msg("Archive rate limited")
	}
	metrics.ArchiveSequence.Set(float64(p.machine.Cursor()))
	return step
}

// deliver returns an error only when ctx ended during the hand-off, in
// which case the slot must not be consumed.
func (p *ArchivePoller) deliver(ctx context.Context, seq int64, body []byte) error {
	ev, err := p.normalizer.Normalize(body, models.SourceArchive)
	if err != nil {
		p.mu.Lock()
		p.malformed++
		p.mu.Unlock()
		metrics.NormalizationFailures.WithLabelValues(string(models.SourceArchive)).Inc()
		logging.Warn().Err(err).Int64("sequence", seq).Msg("Skipping malformed archive record")
		return nil
	}

	p.mu.Lock()
	p.received++
	p.mu.Unlock()

	if err := p.sink.Submit(ctx, ev); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logging.Error().Err(err).Int64("sequence", seq).Int64("kill_id", ev.EventID).Msg("Archive event hand-off failed")
	}
	return nil
}

// Snapshot returns the poller's recovery state.
func (p *ArchivePoller) Snapshot() models.RecoveryState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.machine.Snapshot()
	s.Received = p.received
	s.Malformed = p.malformed
	if !p.running {
		s.State = models.StateIdle
	}
	return s
}

func parseSequence(body []byte) (int64, error) {
	var doc struct {
		Sequence json.Number `json:"sequence"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, fmt.Errorf("decode sequence: %w", err)
	}
	n, err := strconv.ParseInt(strings.Trim(doc.Sequence.String(), `"`), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid sequence %q", doc.Sequence)
	}
	return n, nil
}
