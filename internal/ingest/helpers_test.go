// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/normalize"
)

var errTest = errors.New("boom")

const (
	liveKill    = `{"package":{"killID":123456789,"zkb":{"totalValue":25000000000,"href":"https://esi.evetech.net/latest/killmails/123456789/abc/"}}}`
	archiveKill = `{"killmail_id":123456789,"zkb":{"totalValue":25000000000,"hash":"abc"},` +
		`"esi":{"killmail_id":123456789,"killmail_time":"2026-01-02T03:04:05Z","solar_system_id":31000123,"victim":{"ship_type_id":587}}}`
)

func testNormalizer() *normalize.Normalizer { return normalize.New("") }

// recordingSink collects submitted events. onSubmit, when set, runs after
// each event is recorded.
type recordingSink struct {
	mu       sync.Mutex
	events   []*models.CanonicalEvent
	onSubmit func(ev *models.CanonicalEvent)
}

func (s *recordingSink) Submit(_ context.Context, ev *models.CanonicalEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if s.onSubmit != nil {
		s.onSubmit(ev)
	}
	return nil
}

func (s *recordingSink) Events() []*models.CanonicalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.CanonicalEvent(nil), s.events...)
}

// recordingSleeper returns immediately and remembers every requested delay.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
