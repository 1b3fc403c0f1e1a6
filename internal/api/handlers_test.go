// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/esi"
	"github.com/tomtom215/killstream/internal/models"
)

type fakePoller models.RecoveryState

func (p fakePoller) Snapshot() models.RecoveryState { return models.RecoveryState(p) }

type fakeCounter struct{}

func (fakeCounter) Total() int64          { return 12 }
func (fakeCounter) Session() int64        { return 3 }
func (fakeCounter) Uptime() time.Duration { return 2*time.Hour + 30*time.Minute }
func (fakeCounter) Snapshot() models.StatsSnapshot {
	return models.StatsSnapshot{TotalEvents: 12, TotalValue: 3.5e9}
}

type fakeLocations []models.Location

func (f fakeLocations) Search(query string, limit int) []models.Location {
	var out []models.Location
	for _, l := range f {
		if strings.HasPrefix(strings.ToLower(l.Name), strings.ToLower(query)) && len(out) < limit {
			out = append(out, l)
		}
	}
	return out
}

type fakeNames map[string]int64

func (f fakeNames) LookupID(_ context.Context, name string) (int64, error) {
	if name == "Broken Pilot" {
		return 0, errors.New("upstream down")
	}
	id, ok := f[name]
	if !ok {
		return 0, esi.ErrNameNotFound
	}
	return id, nil
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func testRouter(t *testing.T, deps Deps, static string) http.Handler {
	t.Helper()
	return NewRouter(RouterConfig{
		Handler:    NewHandler(deps),
		Middleware: NewChiMiddleware(&ChiMiddlewareConfig{CORSAllowedOrigins: []string{"*"}, RateLimitRequests: 0}),
		StaticDir:  static,
	})
}

func fullDeps() Deps {
	return Deps{
		Pollers: map[string]StatusReporter{
			"live":    fakePoller{Source: models.SourceLive, State: models.StatePolling},
			"archive": fakePoller{Source: models.SourceArchive, State: models.StatePolling, Cursor: 1234},
		},
		Counter: fakeCounter{},
		Locations: fakeLocations{
			{ID: 30000142, Name: "Jita"},
			{ID: 30002187, Name: "Amarr"},
			{ID: 30000144, Name: "Jita IV"},
		},
		Names:   fakeNames{"Victim Pilot": 90000001},
		Cache:   SizerFunc(func() int { return 40 }),
		Dedup:   SizerFunc(func() int { return 5 }),
		Zones:   SizerFunc(func() int { return 2 }),
		Clients: SizerFunc(func() int { return 1 }),
	}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		state  models.PollerState
		status string
	}{
		{"healthy", models.StatePolling, "healthy"},
		{"backoff degrades", models.StateBackoff, "degraded"},
		{"stopped degrades", models.StateStopped, "degraded"},
		{"disabled ignored", models.StateDisabled, "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps := fullDeps()
			deps.Pollers["firehose"] = fakePoller{Source: models.SourceFirehose, State: tt.state}
			rec, env := get(t, testRouter(t, deps, ""), "/api/v1/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var health models.HealthStatus
			if err := json.Unmarshal(env.Data, &health); err != nil {
				t.Fatal(err)
			}
			if health.Status != tt.status {
				t.Errorf("Status = %q, want %q", health.Status, tt.status)
			}
			if len(health.Pollers) != 3 || health.Pollers["archive"].Cursor != 1234 {
				t.Errorf("Pollers = %+v", health.Pollers)
			}
			if health.CacheEntries != 40 || health.DedupEntries != 5 || health.ZoneLocations != 2 || health.WSClients != 1 {
				t.Errorf("sizes = %+v", health)
			}
			if health.Uptime != "2h 30m" {
				t.Errorf("Uptime = %q", health.Uptime)
			}
		})
	}
}

func TestHealthWithoutDeps(t *testing.T) {
	t.Parallel()

	rec, env := get(t, testRouter(t, Deps{}, ""), "/api/v1/health")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("status = %d %q", rec.Code, env.Status)
	}
	rec, _ = get(t, testRouter(t, Deps{}, ""), "/api/v1/health/live")
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	rec, env := get(t, testRouter(t, fullDeps(), ""), "/api/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats StatsResponse
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	want := StatsResponse{TotalScanned: 12, SessionScanned: 3, TotalValue: 3.5e9, TotalValueISK: "3.50B", Uptime: "2h 30m"}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	rec, env = get(t, testRouter(t, Deps{}, ""), "/api/v1/stats")
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "UNAVAILABLE" {
		t.Errorf("without counter: %d %+v", rec.Code, env.Error)
	}
}

func TestSearchSystems(t *testing.T) {
	t.Parallel()

	router := testRouter(t, fullDeps(), "")
	tests := []struct {
		name   string
		query  string
		status int
		count  int
		code   string
	}{
		{"prefix", "?q=jit", http.StatusOK, 2, ""},
		{"limited", "?q=jit&limit=1", http.StatusOK, 1, ""},
		{"no match", "?q=zzz", http.StatusOK, 0, ""},
		{"missing query", "", http.StatusBadRequest, 0, "VALIDATION_ERROR"},
		{"limit too large", "?q=jit&limit=500", http.StatusBadRequest, 0, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, env := get(t, router, "/api/v1/systems/search"+tt.query)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.code != "" {
				if env.Error == nil || env.Error.Code != tt.code {
					t.Errorf("error = %+v", env.Error)
				}
				return
			}
			var resp SystemSearchResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Count != tt.count || len(resp.Results) != tt.count || resp.Results == nil {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestSearchSystemsValidationNamesField(t *testing.T) {
	t.Parallel()

	_, env := get(t, testRouter(t, fullDeps(), ""), "/api/v1/systems/search?q=")
	if env.Error == nil || env.Error.Details["field"] != "q" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestLookupCharacter(t *testing.T) {
	t.Parallel()

	router := testRouter(t, fullDeps(), "")
	tests := []struct {
		name   string
		query  string
		status int
		id     int64
	}{
		{"found", "?name=Victim+Pilot", http.StatusOK, 90000001},
		{"not found", "?name=Nobody+Here", http.StatusNotFound, 0},
		{"upstream error", "?name=Broken+Pilot", http.StatusBadGateway, 0},
		{"too short", "?name=ab", http.StatusBadRequest, 0},
		{"missing", "", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, env := get(t, router, "/api/v1/characters/lookup"+tt.query)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.id == 0 {
				return
			}
			var resp CharacterLookupResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.ID != tt.id || resp.Name != "Victim Pilot" {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestRouterExtras(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>dash</h1>"), 0o600); err != nil {
		t.Fatal(err)
	}
	router := testRouter(t, fullDeps(), dir)

	rec, _ := get(t, router, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# HELP") {
		t.Errorf("/metrics = %d", rec.Code)
	}

	rec, _ = get(t, router, "/")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dash") {
		t.Errorf("static index = %d %q", rec.Code, rec.Body.String())
	}

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterConfig{
		Handler:    NewHandler(fullDeps()),
		Middleware: NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute}),
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := get(t, router, "/api/v1/stats")
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()

	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
