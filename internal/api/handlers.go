// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/killstream/internal/esi"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/notify"
	"github.com/tomtom215/killstream/internal/processor"
)

// StatusReporter is a poller that can describe its recovery state.
type StatusReporter interface {
	Snapshot() models.RecoveryState
}

// Counter is the lifetime and session kill counter.
type Counter interface {
	Total() int64
	Session() int64
	Uptime() time.Duration
	Snapshot() models.StatsSnapshot
}

// LocationSearcher completes location names.
type LocationSearcher interface {
	Search(query string, limit int) []models.Location
}

// NameLookup resolves a pilot name to its id.
type NameLookup interface {
	LookupID(ctx context.Context, name string) (int64, error)
}

// Sizer reports how many entries a collection holds.
type Sizer interface {
	Len() int
}

// SizerFunc adapts a function to Sizer.
type SizerFunc func() int

// Len calls f.
func (f SizerFunc) Len() int { return f() }

// Deps are the components the handlers read from. Nil fields are reported
// as empty or unavailable.
type Deps struct {
	Pollers   map[string]StatusReporter
	Counter   Counter
	Locations LocationSearcher
	Names     NameLookup
	Cache     Sizer
	Dedup     Sizer
	Zones     Sizer
	Clients   Sizer
}

// Handler serves the read-only status API.
type Handler struct {
	deps Deps
}

// NewHandler returns a handler over deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func size(s Sizer) int {
	if s == nil {
		return 0
	}
	return s.Len()
}

// Health reports per-poller recovery state. The status is "degraded" while
// any enabled poller is backing off or has stopped.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	health := models.HealthStatus{
		Status:        "healthy",
		Pollers:       make(map[string]models.RecoveryState, len(h.deps.Pollers)),
		CacheEntries:  size(h.deps.Cache),
		DedupEntries:  size(h.deps.Dedup),
		ZoneLocations: size(h.deps.Zones),
		WSClients:     size(h.deps.Clients),
	}
	if h.deps.Counter != nil {
		health.Uptime = notify.FormatUptime(h.deps.Counter.Uptime())
	}

	names := make([]string, 0, len(h.deps.Pollers))
	for name := range h.deps.Pollers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		snap := h.deps.Pollers[name].Snapshot()
		health.Pollers[name] = snap
		if snap.State == models.StateBackoff || snap.State == models.StateStopped {
			health.Status = "degraded"
		}
	}
	respondData(w, start, health)
}

// HealthLive answers liveness probes.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondData(w, time.Now(), map[string]bool{"alive": true})
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	TotalScanned   int64   `json:"totalScanned"`
	SessionScanned int64   `json:"sessionScanned"`
	TotalValue     float64 `json:"totalValue"`
	TotalValueISK  string  `json:"totalValueIsk"`
	Uptime         string  `json:"uptime"`
}

// Stats returns the kill counters.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	start := time.Now()
	if h.deps.Counter == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Stats are not available", nil)
		return
	}
	snap := h.deps.Counter.Snapshot()
	respondData(w, start, StatsResponse{
		TotalScanned:   snap.TotalEvents,
		SessionScanned: h.deps.Counter.Session(),
		TotalValue:     snap.TotalValue,
		TotalValueISK:  processor.FormatISK(snap.TotalValue),
		Uptime:         notify.FormatUptime(h.deps.Counter.Uptime()),
	})
}

// SystemSearchRequest is the query of the system search endpoint.
type SystemSearchRequest struct {
	Query string `json:"q" validate:"required,max=64"`
	Limit int    `json:"limit" validate:"min=1,max=50"`
}

// SystemSearchResponse lists matching locations.
type SystemSearchResponse struct {
	Results []models.Location `json:"results"`
	Count   int               `json:"count"`
}

// SearchSystems completes a system name, falling back to near misses when
// nothing matches the prefix.
func (h *Handler) SearchSystems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := SystemSearchRequest{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: getIntParam(r, "limit", 10),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}
	if h.deps.Locations == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Location table is not loaded", nil)
		return
	}

	results := h.deps.Locations.Search(req.Query, req.Limit)
	if results == nil {
		results = []models.Location{}
	}
	respondData(w, start, SystemSearchResponse{Results: results, Count: len(results)})
}

// CharacterLookupRequest is the query of the character lookup endpoint.
type CharacterLookupRequest struct {
	Name string `json:"name" validate:"required,min=3,max=37"`
}

// CharacterLookupResponse pairs a pilot name with its id.
type CharacterLookupResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LookupCharacter resolves a pilot name through the identifier service.
func (h *Handler) LookupCharacter(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := CharacterLookupRequest{Name: strings.TrimSpace(r.URL.Query().Get("name"))}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidation(w, apiErr)
		return
	}
	if h.deps.Names == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Name lookup is not available", nil)
		return
	}

	id, err := h.deps.Names.LookupID(r.Context(), req.Name)
	switch {
	case errors.Is(err, esi.ErrNameNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No character with that name", nil)
		return
	case err != nil:
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Name lookup failed", err)
		return
	}
	respondData(w, start, CharacterLookupResponse{ID: id, Name: req.Name})
}
