// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/killstream/internal/models"
)

// archiveServer serves sequence.json and numbered slots. respond decides
// the status for the n-th request to a slot (n starts at 1).
type archiveServer struct {
	mu       sync.Mutex
	latest   string
	requests []string
	hits     map[string]int
	respond  func(slot string, n int) (int, string)
}

func newArchiveServer(t *testing.T, latest string, respond func(slot string, n int) (int, string)) (*archiveServer, *httptest.Server) {
	t.Helper()
	a := &archiveServer{latest: latest, hits: make(map[string]int), respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
		a.mu.Lock()
		if slot == "sequence" {
			latest := a.latest
			a.mu.Unlock()
			_, _ = w.Write([]byte(`{"sequence":` + latest + `}`))
			return
		}
		a.requests = append(a.requests, slot)
		a.hits[slot]++
		n := a.hits[slot]
		a.mu.Unlock()

		status, body := a.respond(slot, n)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return a, srv
}

func (a *archiveServer) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func TestArchivePoller_GapRetriedThenSkipped(t *testing.T) {
	t.Parallel()

	a, srv := newArchiveServer(t, "102", func(slot string, _ int) (int, string) {
		if slot == "101" {
			return http.StatusOK, archiveKill
		}
		return http.StatusNotFound, ""
	})

	sink := &recordingSink{}
	p := NewArchivePoller(ArchiveConfig{BaseURL: srv.URL, Policy: DefaultArchivePolicy()}, testNormalizer(), sink, nil)
	policy := p.machine.Policy()
	ctx := context.Background()

	wantSteps := []Step{
		{Action: ActionPrimed},
		{Action: ActionRetry, Delay: policy.GapDelay},
		{Action: ActionRetry, Delay: policy.GapDelay},
		{Action: ActionGapSkip},
		{Action: ActionAdvance},
	}
	for i, want := range wantSteps {
		if got := p.Step(ctx); got != want {
			t.Fatalf("step %d = %+v, want %+v", i, got, want)
		}
	}

	got := a.Requests()
	want := []string{"100", "100", "100", "101"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("requested slots = %v, want %v", got, want)
	}
	if events := sink.Events(); len(events) != 1 || events[0].EventID != 123456789 {
		t.Fatalf("sink events = %+v", events)
	}

	snap := p.Snapshot()
	if snap.Cursor != 102 || snap.Received != 1 {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestArchivePoller_RateLimitCooldown(t *testing.T) {
	t.Parallel()

	a, srv := newArchiveServer(t, "101", func(slot string, n int) (int, string) {
		if slot == "99" && n == 1 {
			return http.StatusTooManyRequests, ""
		}
		return http.StatusOK, archiveKill
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{onSubmit: func(*models.CanonicalEvent) { cancel() }}
	sleeper := &recordingSleeper{}
	p := NewArchivePoller(ArchiveConfig{BaseURL: srv.URL, Policy: DefaultArchivePolicy()}, testNormalizer(), sink, sleeper)

	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	if got := a.Requests(); len(got) != 2 || got[0] != "99" || got[1] != "99" {
		t.Errorf("requested slots = %v, want [99 99]", got)
	}
	delays := sleeper.Delays()
	if len(delays) != 1 || delays[0] != DefaultArchivePolicy().RateLimitBackoff {
		t.Errorf("sleeps = %v, want [%v]", delays, DefaultArchivePolicy().RateLimitBackoff)
	}
	if snap := p.Snapshot(); snap.RateLimitedUntil.IsZero() {
		t.Error("RateLimitedUntil not recorded")
	}
}

func TestArchivePoller_ResyncReprimes(t *testing.T) {
	t.Parallel()

	a, srv := newArchiveServer(t, "50", func(string, int) (int, string) {
		return http.StatusNotFound, ""
	})

	policy := DefaultArchivePolicy()
	policy.GapThreshold = 2
	policy.ResyncThreshold = 3
	p := NewArchivePoller(ArchiveConfig{BaseURL: srv.URL, Policy: policy}, testNormalizer(), &recordingSink{}, nil)
	ctx := context.Background()

	p.Step(ctx) // prime
	for i, want := range []Action{ActionRetry, ActionGapSkip, ActionResync} {
		if step := p.Step(ctx); step.Action != want {
			t.Fatalf("miss %d: %s, want %s", i+1, step.Action, want)
		}
	}
	if got := a.Requests(); strings.Join(got, ",") != "48,48,49" {
		t.Errorf("requested slots = %v, want [48 48 49]", got)
	}
	if state := p.machine.State(); state != models.StatePriming {
		t.Fatalf("state = %s, want priming", state)
	}

	a.mu.Lock()
	a.latest = "80"
	a.mu.Unlock()

	if step := p.Step(ctx); step.Action != ActionPrimed {
		t.Fatalf("re-prime: %s", step.Action)
	}
	if c := p.machine.Cursor(); c != 78 {
		t.Errorf("cursor after re-prime = %d, want 78", c)
	}
}

func TestArchivePoller_MalformedSlotConsumed(t *testing.T) {
	t.Parallel()

	_, srv := newArchiveServer(t, "12", func(string, int) (int, string) {
		return http.StatusOK, `{"unexpected":true}`
	})

	sink := &recordingSink{}
	p := NewArchivePoller(ArchiveConfig{BaseURL: srv.URL}, testNormalizer(), sink, nil)
	ctx := context.Background()

	p.Step(ctx)
	if step := p.Step(ctx); step.Action != ActionAdvance {
		t.Fatalf("malformed slot step = %s, want advance", step.Action)
	}
	snap := p.Snapshot()
	if snap.Malformed != 1 || snap.Cursor != 11 {
		t.Errorf("Snapshot() = %+v", snap)
	}
	if len(sink.Events()) != 0 {
		t.Error("malformed record reached the sink")
	}
}

func TestArchivePoller_PrimeFailureRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	p := NewArchivePoller(ArchiveConfig{BaseURL: srv.URL}, testNormalizer(), &recordingSink{}, nil)
	step := p.Step(context.Background())
	if step.Action != ActionPrimeRetry || step.Delay != DefaultArchivePolicy().PrimeRetry {
		t.Errorf("Step() = %+v", step)
	}
}

func TestArchivePoller_MissingBaseURLIsFatal(t *testing.T) {
	t.Parallel()

	p := NewArchivePoller(ArchiveConfig{}, testNormalizer(), &recordingSink{}, nil)
	err := p.Serve(context.Background())
	if !errors.Is(err, ErrFatalConfiguration) {
		t.Errorf("Serve() = %v, want ErrFatalConfiguration", err)
	}
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want suture.ErrDoNotRestart", err)
	}
}

func TestParseSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body    string
		want    int64
		wantErr bool
	}{
		{`{"sequence":12345}`, 12345, false},
		{`{"sequence":-1}`, 0, true},
		{`{}`, 0, true},
		{`not json`, 0, true},
	}
	for _, tt := range tests {
		got, err := parseSequence([]byte(tt.body))
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSequence(%s) error = %v, wantErr %v", tt.body, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSequence(%s) = %d, want %d", tt.body, got, tt.want)
		}
	}
}
