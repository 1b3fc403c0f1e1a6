// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package stats

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/killstream/internal/store"
)

func TestRecordAndReset(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil)
	if got := tr.Record(1e9); got != 1 {
		t.Errorf("Record() = %d, want 1", got)
	}
	if got := tr.Record(-5); got != 2 {
		t.Errorf("Record() = %d, want 2", got)
	}

	snap := tr.Snapshot()
	if snap.TotalEvents != 2 || snap.TotalValue != 1e9 {
		t.Errorf("Snapshot() = %+v", snap)
	}
	if prev := tr.ResetSession(); prev != 2 {
		t.Errorf("ResetSession() = %d, want 2", prev)
	}
	if tr.Session() != 0 || tr.Total() != 2 {
		t.Errorf("after reset session=%d total=%d", tr.Session(), tr.Total())
	}
}

func TestRecordConcurrent(t *testing.T) {
	t.Parallel()

	tr := NewTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(2)
		}()
	}
	wg.Wait()

	if tr.Total() != 50 || tr.Snapshot().TotalValue != 100 {
		t.Errorf("total=%d value=%v", tr.Total(), tr.Snapshot().TotalValue)
	}
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tr := NewTracker(fs)
	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("Flush() on clean tracker error = %v", err)
	}
	if _, err := os.Stat(fs.Path(store.KeyStats)); !os.IsNotExist(err) {
		t.Fatal("clean tracker wrote a snapshot")
	}

	tr.Record(5e8)
	tr.Record(5e8)
	if err := tr.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	data, err := os.ReadFile(fs.Path(store.KeyStats))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"totalEvents"`) || !strings.Contains(string(data), `"totalValue"`) {
		t.Errorf("snapshot = %s", data)
	}

	restored := NewTracker(fs)
	if err := restored.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if restored.Total() != 2 || restored.Session() != 0 || restored.Snapshot().TotalValue != 1e9 {
		t.Errorf("restored total=%d session=%d value=%v",
			restored.Total(), restored.Session(), restored.Snapshot().TotalValue)
	}
}
