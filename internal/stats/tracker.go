// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package stats keeps the lifetime and session kill counters.
package stats

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/store"
)

// Tracker counts processed kills. The lifetime total and value sum survive
// restarts through a snapshot; the session counter is reset after each
// status report.
type Tracker struct {
	total   atomic.Int64
	session atomic.Int64
	dirty   atomic.Bool

	mu    sync.Mutex
	value float64

	snapshots store.SnapshotStore
	started   time.Time
}

// NewTracker returns a zeroed tracker. snapshots may be nil.
func NewTracker(snapshots store.SnapshotStore) *Tracker {
	return &Tracker{snapshots: snapshots, started: time.Now()}
}

// Record counts one kill worth value and returns the new lifetime total.
func (t *Tracker) Record(value float64) int64 {
	if value > 0 {
		t.mu.Lock()
		t.value += value
		t.mu.Unlock()
	}
	t.session.Add(1)
	t.dirty.Store(true)
	return t.total.Add(1)
}

// Total returns the lifetime kill count.
func (t *Tracker) Total() int64 {
	return t.total.Load()
}

// Session returns kills counted since the last ResetSession.
func (t *Tracker) Session() int64 {
	return t.session.Load()
}

// ResetSession zeroes the session counter and returns its previous value.
func (t *Tracker) ResetSession() int64 {
	return t.session.Swap(0)
}

// StartedAt returns when the tracker was created.
func (t *Tracker) StartedAt() time.Time {
	return t.started
}

// Uptime returns the time since the tracker was created.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}

// Snapshot returns the persisted view of the counters.
func (t *Tracker) Snapshot() models.StatsSnapshot {
	t.mu.Lock()
	value := t.value
	t.mu.Unlock()
	return models.StatsSnapshot{TotalEvents: t.total.Load(), TotalValue: value}
}

// Load restores the lifetime counters. A missing snapshot starts at zero.
func (t *Tracker) Load(ctx context.Context) error {
	if t.snapshots == nil {
		return nil
	}
	var snap models.StatsSnapshot
	found, err := t.snapshots.Load(ctx, store.KeyStats, &snap)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	if !found {
		logging.Info().Msg("No stats snapshot found, counters start at zero")
		return nil
	}
	if snap.TotalEvents < 0 {
		snap.TotalEvents = 0
	}
	t.total.Store(snap.TotalEvents)
	t.mu.Lock()
	t.value = snap.TotalValue
	t.mu.Unlock()
	logging.Info().Int64("total_events", snap.TotalEvents).Msg("Stats restored")
	return nil
}

// Flush writes the counters if they changed since the last flush.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.snapshots == nil || !t.dirty.Swap(false) {
		return nil
	}
	err := t.snapshots.Save(ctx, store.KeyStats, t.Snapshot())
	metrics.RecordSnapshot(store.KeyStats, err)
	if err != nil {
		t.dirty.Store(true)
		return fmt.Errorf("flush stats: %w", err)
	}
	return nil
}
