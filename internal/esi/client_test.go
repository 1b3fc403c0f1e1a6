// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package esi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(ClientConfig{
		BaseURL:           srv.URL,
		UserAgent:         "killstream-test",
		CompatibilityDate: "2025-12-16",
		Timeout:           2 * time.Second,
		BreakerFailures:   2,
		BreakerTimeout:    time.Minute,
	})
	return c, srv
}

func TestClientSetsHeaders(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		_, _ = w.Write([]byte(`{}`))
	}))

	if _, err := c.Get(context.Background(), "/status/"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	h := <-headers
	ua, compat := h.Get("User-Agent"), h.Get("X-Compatibility-Date")
	if ua != "killstream-test" {
		t.Errorf("User-Agent = %q", ua)
	}
	if compat != "2025-12-16" {
		t.Errorf("X-Compatibility-Date = %q", compat)
	}
}

func TestClientStatusError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Get(context.Background(), "characters/1/")
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("error = %#v, want *StatusError 404", err)
	}
}

func TestClientBreakerIgnoresNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background(), "characters/1/"); !IsNotFound(err) {
			t.Fatalf("call %d: error = %v, want 404", i, err)
		}
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("upstream calls = %d, want 5", got)
	}
}

func TestClientBreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "characters/1/"); StatusCode(err) != http.StatusBadGateway {
			t.Fatalf("call %d: error = %v, want 502", i, err)
		}
	}

	_, err := c.Get(context.Background(), "characters/1/")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want open breaker", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestFetchKillmailAbsoluteRef(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/killmails/123/abc/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"killmail_id":123,"solar_system_id":31000123,"victim":{"ship_type_id":587,"character_id":9}}`))
	})
	c, srv := newTestClient(t, mux)

	km, err := c.FetchKillmail(context.Background(), srv.URL+"/killmails/123/abc/")
	if err != nil {
		t.Fatalf("FetchKillmail() error = %v", err)
	}
	if km.KillmailID != 123 || km.SolarSystemID != 31000123 || km.Victim.ShipTypeID != 587 {
		t.Errorf("killmail = %+v", km)
	}

	if _, err := c.FetchKillmail(context.Background(), ""); err == nil {
		t.Error("FetchKillmail(\"\") error = nil")
	}
}
