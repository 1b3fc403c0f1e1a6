// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/normalize"
)

// LiveConfig configures the long-poll live-tail source.
type LiveConfig struct {
	URL              string
	QueueID          string
	TTW              int // seconds the upstream holds an empty poll open
	Timeout          time.Duration
	RateLimitBackoff time.Duration
	ErrorBackoff     time.Duration
	UserAgent        string
}

// LiveTailPoller long-polls the live queue. Each response carries at most
// one kill; an empty package means the hold expired and the next poll goes
// out immediately.
type LiveTailPoller struct {
	cfg        LiveConfig
	client     *http.Client
	normalizer *normalize.Normalizer
	sink       Sink
	sleeper    Sleeper

	mu    sync.RWMutex
	state models.RecoveryState
}

// NewLiveTailPoller returns a poller feeding sink. A nil sleeper selects
// RealSleeper.
func NewLiveTailPoller(cfg LiveConfig, normalizer *normalize.Normalizer, sink Sink, sleeper Sleeper) *LiveTailPoller {
	if cfg.TTW < 1 {
		cfg.TTW = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if sleeper == nil {
		sleeper = RealSleeper
	}
	return &LiveTailPoller{
		cfg: cfg,
		// The upstream holds the request for TTW seconds before answering.
		client:     &http.Client{Timeout: cfg.Timeout + time.Duration(cfg.TTW)*time.Second},
		normalizer: normalizer,
		sink:       sink,
		sleeper:    sleeper,
		state:      models.RecoveryState{Source: models.SourceLive, State: models.StateIdle},
	}
}

func (p *LiveTailPoller) String() string { return "live-tail-poller" }

// Serve polls until ctx is cancelled.
func (p *LiveTailPoller) Serve(ctx context.Context) error {
	if p.cfg.URL == "" || p.cfg.QueueID == "" {
		p.setState(models.StateStopped)
		return fatalConfig(p.String(), "live queue url and queue id are required")
	}
	endpoint, err := p.endpoint()
	if err != nil {
		p.setState(models.StateStopped)
		return fatalConfig(p.String(), err.Error())
	}

	logging.Info().Str("queue_id", p.cfg.QueueID).Msg("Live-tail poller started")
	defer p.setState(models.StateStopped)

	for ctx.Err() == nil {
		outcome, delay := p.PollOnce(ctx, endpoint)
		if delay <= 0 {
			continue
		}
		metrics.RecordBackoff(string(models.SourceLive), outcome.String(), delay)
		p.setState(models.StateBackoff)
		if err := p.sleeper.Sleep(ctx, delay); err != nil {
			break
		}
	}
	return ctx.Err()
}

func (p *LiveTailPoller) endpoint() (string, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("queueID", p.cfg.QueueID)
	q.Set("ttw", strconv.Itoa(p.cfg.TTW))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PollOnce issues one long-poll and returns the outcome and the delay to
// apply before the next one.
func (p *LiveTailPoller) PollOnce(ctx context.Context, endpoint string) (Outcome, time.Duration) {
	p.setState(models.StatePolling)

	status, body, err := get(ctx, p.client, endpoint, p.cfg.UserAgent)
	if ctx.Err() != nil {
		return OutcomeError, 0
	}
	outcome := Classify(status, err)
	if outcome == OutcomeFound && isEmptyPackage(body) {
		outcome = OutcomeEmpty
	}
	metrics.RecordPoll(string(models.SourceLive), outcome.String())
	p.record(outcome)

	switch outcome {
	case OutcomeFound:
		p.deliver(ctx, body)
		return outcome, 0
	case OutcomeEmpty:
		return outcome, 0
	case OutcomeRateLimited:
		until := time.Now().Add(p.cfg.RateLimitBackoff)
		p.mu.Lock()
		p.state.RateLimitedUntil = until
		p.mu.Unlock()
		logging.Warn().Dur("backoff", p.cfg.RateLimitBackoff).Msg("Live queue rate limited")
		return outcome, p.cfg.RateLimitBackoff
	default:
		ev := logging.Warn().Int("status", status).Dur("backoff", p.cfg.ErrorBackoff)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("Live queue poll failed")
		return outcome, p.cfg.ErrorBackoff
	}
}

func (p *LiveTailPoller) deliver(ctx context.Context, body []byte) {
	ev, err := p.normalizer.Normalize(body, models.SourceLive)
	if err != nil {
		p.mu.Lock()
		p.state.Malformed++
		p.mu.Unlock()
		metrics.NormalizationFailures.WithLabelValues(string(models.SourceLive)).Inc()
		logging.Warn().Err(err).Msg("Dropping malformed live payload")
		return
	}
	p.mu.Lock()
	p.state.Received++
	p.state.LastSuccess = time.Now()
	p.mu.Unlock()

	if err := p.sink.Submit(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Int64("kill_id", ev.EventID).Msg("Live event hand-off failed")
	}
}

// isEmptyPackage reports whether a 200 body is the "nothing yet" answer.
func isEmptyPackage(body []byte) bool {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return true
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return false
	}
	pkg, ok := env["package"]
	if !ok {
		return len(env) == 0
	}
	pkg = bytes.TrimSpace(pkg)
	return len(pkg) == 0 || bytes.Equal(pkg, []byte("null"))
}

func (p *LiveTailPoller) record(outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.LastOutcome = outcome.String()
}

func (p *LiveTailPoller) setState(s models.PollerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.State = s
}

// Snapshot returns the poller's current state.
func (p *LiveTailPoller) Snapshot() models.RecoveryState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}
