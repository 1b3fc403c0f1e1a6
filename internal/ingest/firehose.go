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
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/normalize"
)

// FirehoseConfig configures the push websocket source.
type FirehoseConfig struct {
	URL            string
	Channel        string
	ReconnectDelay time.Duration
	UserAgent      string
}

type subscribe struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// FirehoseListener subscribes to the upstream websocket feed and forwards
// every kill it pushes. A dropped connection is re-dialled after
// ReconnectDelay.
type FirehoseListener struct {
	cfg        FirehoseConfig
	dialer     *websocket.Dialer
	normalizer *normalize.Normalizer
	sink       Sink
	sleeper    Sleeper

	mu    sync.RWMutex
	state models.RecoveryState
}

// NewFirehoseListener returns a listener feeding sink.
func NewFirehoseListener(cfg FirehoseConfig, normalizer *normalize.Normalizer, sink Sink, sleeper Sleeper) *FirehoseListener {
	if cfg.Channel == "" {
		cfg.Channel = "killstream"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if sleeper == nil {
		sleeper = RealSleeper
	}
	return &FirehoseListener{
		cfg:        cfg,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		normalizer: normalizer,
		sink:       sink,
		sleeper:    sleeper,
		state:      models.RecoveryState{Source: models.SourceFirehose, State: models.StateIdle},
	}
}

func (f *FirehoseListener) String() string { return "firehose-listener" }

// Serve keeps a subscription open until ctx is cancelled.
func (f *FirehoseListener) Serve(ctx context.Context) error {
	if f.cfg.URL == "" {
		return fatalConfig(f.String(), "firehose url is required")
	}
	defer f.setState(models.StateStopped)

	for ctx.Err() == nil {
		err := f.listen(ctx)
		if ctx.Err() != nil {
			break
		}
		metrics.RecordPoll(string(models.SourceFirehose), OutcomeError.String())
		logging.Warn().Err(err).Dur("retry_in", f.cfg.ReconnectDelay).Msg("Firehose connection lost")
		f.setState(models.StateBackoff)
		metrics.RecordBackoff(string(models.SourceFirehose), "reconnect", f.cfg.ReconnectDelay)
		if err := f.sleeper.Sleep(ctx, f.cfg.ReconnectDelay); err != nil {
			break
		}
	}
	return ctx.Err()
}

func (f *FirehoseListener) listen(ctx context.Context) error {
	header := http.Header{}
	if f.cfg.UserAgent != "" {
		header.Set("User-Agent", f.cfg.UserAgent)
	}
	conn, resp, err := f.dialer.DialContext(ctx, f.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(subscribe{Action: "sub", Channel: f.cfg.Channel}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.setState(models.StatePolling)
	logging.Info().Str("channel", f.cfg.Channel).Msg("Firehose subscribed")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		f.deliver(ctx, data)
	}
}

func (f *FirehoseListener) deliver(ctx context.Context, data []byte) {
	ev, err := f.normalizer.Normalize(data, models.SourceFirehose)
	if err != nil {
		f.mu.Lock()
		f.state.Malformed++
		f.mu.Unlock()
		metrics.NormalizationFailures.WithLabelValues(string(models.SourceFirehose)).Inc()
		logging.Debug().Err(err).Msg("Ignoring non-kill firehose message")
		return
	}
	metrics.RecordPoll(string(models.SourceFirehose), OutcomeFound.String())

	f.mu.Lock()
	f.state.Received++
	f.state.LastSuccess = time.Now()
	f.mu.Unlock()

	if err := f.sink.Submit(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Int64("kill_id", ev.EventID).Msg("Firehose event hand-off failed")
	}
}

func (f *FirehoseListener) setState(s models.PollerState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.State = s
}

// Snapshot returns the listener's current state.
func (f *FirehoseListener) Snapshot() models.RecoveryState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}
