// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package esi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/store"
)

const (
	// RegionFallback labels locations with no known region (wormhole space).
	RegionFallback = "K-Space"
	// UnknownLocation labels an event whose location cannot be resolved.
	UnknownLocation = "Unknown System"
)

// batchLimit is the most ids the bulk names endpoint accepts per request.
const batchLimit = 1000

// sharedLookupTimeout bounds a coalesced lookup once it no longer follows
// the context of the caller that started it.
const sharedLookupTimeout = 30 * time.Second

// ErrNameNotFound is returned by LookupID when the name matches no character.
var ErrNameNotFound = errors.New("name not found")

// API is the subset of Client the resolver uses.
type API interface {
	Get(ctx context.Context, ref string) ([]byte, error)
	Post(ctx context.Context, path string, body any) ([]byte, error)
}

var endpoints = map[models.Category]string{
	models.CategoryOwner:    "characters",
	models.CategoryGroup:    "corporations",
	models.CategoryAlliance: "alliances",
	models.CategoryType:     "universe/types",
	models.CategoryRegion:   "universe/regions",
}

// bulk endpoint categories
var bulkCategories = map[string]models.Category{
	"character":      models.CategoryOwner,
	"corporation":    models.CategoryGroup,
	"alliance":       models.CategoryAlliance,
	"inventory_type": models.CategoryType,
	"region":         models.CategoryRegion,
}

// Snapshot is the persisted form of the name cache.
type Snapshot map[models.Category]map[int64]string

// Resolver maps numeric identifiers to display names.
//
// Names are immutable upstream, so an entry is written once and never
// expires. Only successful lookups are cached; a failed lookup yields
// models.UnknownName and is retried the next time the id is seen.
// Concurrent misses for the same key share one upstream request.
type Resolver struct {
	api       API
	snapshots store.SnapshotStore
	locations *Locations

	mu             sync.RWMutex
	names          map[models.Category]map[int64]string
	constellations map[int64]int64 // constellation id -> region id
	systems        map[int64]models.Location
	dirty          bool

	group singleflight.Group
}

// NewResolver returns an empty resolver. snapshots and locations may be nil.
func NewResolver(api API, snapshots store.SnapshotStore, locations *Locations) *Resolver {
	r := &Resolver{
		api:            api,
		snapshots:      snapshots,
		locations:      locations,
		names:          make(map[models.Category]map[int64]string),
		constellations: make(map[int64]int64),
		systems:        make(map[int64]models.Location),
	}
	for cat := range endpoints {
		r.names[cat] = make(map[int64]string)
	}
	return r
}

// Locations returns the static location table.
func (r *Resolver) Locations() *Locations {
	return r.locations
}

// Resolve returns the display name for id in category. It never fails:
// unknown, invalid, or unreachable ids resolve to models.UnknownName.
func (r *Resolver) Resolve(ctx context.Context, cat models.Category, id int64) string {
	if id <= 0 {
		metrics.RecordLookup(string(cat), "sentinel")
		return models.UnknownName
	}
	if cat == models.CategoryLocation {
		if loc, ok := r.Location(ctx, id); ok {
			return loc.Name
		}
		return models.UnknownName
	}
	if _, ok := endpoints[cat]; !ok {
		return models.UnknownName
	}

	if name, ok := r.cached(cat, id); ok {
		metrics.RecordLookup(string(cat), "hit")
		return name
	}

	key := string(cat) + ":" + strconv.FormatInt(id, 10)
	v, err := r.do(ctx, key, func(ctx context.Context) (any, error) {
		if name, ok := r.cached(cat, id); ok {
			return name, nil
		}
		name, err := r.fetchName(ctx, cat, id)
		if err != nil {
			return "", err
		}
		r.put(cat, id, name)
		return name, nil
	})
	if err != nil {
		metrics.RecordLookup(string(cat), "error")
		logging.Ctx(ctx).Warn().Err(err).
			Str("category", string(cat)).
			Int64("id", id).
			Int("status", StatusCode(err)).
			Msg("Identifier lookup failed")
		return models.UnknownName
	}
	metrics.RecordLookup(string(cat), "miss")
	return v.(string)
}

// ResolveBatch resolves many ids with one bulk request for the ones not yet
// cached. Ids the bulk endpoint cannot answer are left out of the result;
// callers fall back to Resolve for them.
func (r *Resolver) ResolveBatch(ctx context.Context, ids ...int64) map[int64]string {
	out := make(map[int64]string, len(ids))
	seen := make(map[int64]bool, len(ids))
	var missing []int64
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		if name, ok := r.cachedAny(id); ok {
			out[id] = name
			continue
		}
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += batchLimit {
		end := start + batchLimit
		if end > len(missing) {
			end = len(missing)
		}
		if err := r.fetchBatch(ctx, missing[start:end], out); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Int("ids", end-start).Msg("Bulk identifier lookup failed")
		}
	}
	return out
}

func (r *Resolver) fetchBatch(ctx context.Context, ids []int64, out map[int64]string) error {
	body, err := r.api.Post(ctx, "universe/names/", ids)
	if err != nil {
		return err
	}
	var entries []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return fmt.Errorf("decode names: %w", err)
	}
	for _, e := range entries {
		cat, ok := bulkCategories[e.Category]
		if !ok || e.ID <= 0 || e.Name == "" {
			continue
		}
		r.put(cat, e.ID, e.Name)
		out[e.ID] = e.Name
	}
	return nil
}

// LookupID resolves a character name to its id.
func (r *Resolver) LookupID(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, ErrNameNotFound
	}
	body, err := r.api.Post(ctx, "universe/ids/", []string{name})
	if err != nil {
		return 0, fmt.Errorf("lookup %q: %w", name, err)
	}
	var resp struct {
		Characters []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"characters"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode ids: %w", err)
	}
	if len(resp.Characters) == 0 || resp.Characters[0].ID <= 0 {
		return 0, ErrNameNotFound
	}
	c := resp.Characters[0]
	r.put(models.CategoryOwner, c.ID, c.Name)
	return c.ID, nil
}

// Location returns the record for a location id, consulting the static table
// first and the upstream service for anything the table lacks.
func (r *Resolver) Location(ctx context.Context, id int64) (models.Location, bool) {
	if id <= 0 {
		return models.Location{}, false
	}
	if loc, ok := r.locations.Get(id); ok {
		return loc, true
	}

	r.mu.RLock()
	loc, ok := r.systems[id]
	r.mu.RUnlock()
	if ok {
		return loc, true
	}

	v, err := r.do(ctx, "system:"+strconv.FormatInt(id, 10), func(ctx context.Context) (any, error) {
		body, err := r.api.Get(ctx, "universe/systems/"+strconv.FormatInt(id, 10)+"/")
		if err != nil {
			return models.Location{}, err
		}
		var rec locationRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return models.Location{}, fmt.Errorf("decode system: %w", err)
		}
		loc := rec.location(id)
		if loc.Name == "" {
			return models.Location{}, fmt.Errorf("system %d has no name", id)
		}
		r.mu.Lock()
		r.systems[id] = loc
		r.mu.Unlock()
		return loc, nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("location_id", id).Int("status", StatusCode(err)).
			Msg("Location lookup failed")
		return models.Location{}, false
	}
	return v.(models.Location), true
}

// RegionName returns the region label for loc. Locations with no region
// chain, such as wormhole systems, are labelled RegionFallback.
func (r *Resolver) RegionName(ctx context.Context, loc models.Location) string {
	regionID := loc.RegionID
	if regionID == 0 && loc.ConstellationID > 0 {
		regionID = r.constellationRegion(ctx, loc.ConstellationID)
	}
	if regionID <= 0 {
		return RegionFallback
	}
	return r.Resolve(ctx, models.CategoryRegion, regionID)
}

func (r *Resolver) constellationRegion(ctx context.Context, constellationID int64) int64 {
	r.mu.RLock()
	regionID, ok := r.constellations[constellationID]
	r.mu.RUnlock()
	if ok {
		return regionID
	}

	key := strconv.FormatInt(constellationID, 10)
	v, err := r.do(ctx, "constellation:"+key, func(ctx context.Context) (any, error) {
		body, err := r.api.Get(ctx, "universe/constellations/"+key+"/")
		if err != nil {
			return int64(0), err
		}
		var resp struct {
			RegionID int64 `json:"region_id"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return int64(0), fmt.Errorf("decode constellation: %w", err)
		}
		if resp.RegionID > 0 {
			r.mu.Lock()
			r.constellations[constellationID] = resp.RegionID
			r.mu.Unlock()
		}
		return resp.RegionID, nil
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("constellation_id", constellationID).Msg("Region lookup failed")
		return 0
	}
	return v.(int64)
}

// do runs fn once per key for all concurrent callers. fn gets a context
// detached from the first caller, so one cancelled caller does not fail the
// others; each caller still stops waiting when its own ctx is done.
func (r *Resolver) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return fn(shared)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Resolver) fetchName(ctx context.Context, cat models.Category, id int64) (string, error) {
	body, err := r.api.Get(ctx, endpoints[cat]+"/"+strconv.FormatInt(id, 10)+"/")
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode %s %d: %w", cat, id, err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("%s %d has no name", cat, id)
	}
	return resp.Name, nil
}

func (r *Resolver) cached(cat models.Category, id int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[cat][id]
	return name, ok
}

func (r *Resolver) cachedAny(id int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.names {
		if name, ok := m[id]; ok {
			return name, true
		}
	}
	return "", false
}

// put stores a name if the key is new. Existing entries are never replaced.
func (r *Resolver) put(cat models.Category, id int64, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.names[cat]
	if !ok {
		return
	}
	if _, exists := m[id]; exists {
		return
	}
	m[id] = name
	r.dirty = true
}

// Dirty reports whether entries were added since the last flush or load.
func (r *Resolver) Dirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dirty
}

// Len returns the number of cached names across categories.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.names {
		n += len(m)
	}
	return n
}

// Snapshot returns a copy of the name cache.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Resolver) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(r.names))
	for cat, m := range r.names {
		cp := make(map[int64]string, len(m))
		for id, name := range m {
			cp[id] = name
		}
		snap[cat] = cp
	}
	return snap
}

// Flush persists the cache if anything changed since the last flush.
func (r *Resolver) Flush(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}

	r.mu.Lock()
	if !r.dirty {
		r.mu.Unlock()
		return nil
	}
	snap := r.snapshotLocked()
	r.dirty = false
	r.mu.Unlock()

	err := r.snapshots.Save(ctx, store.KeyIdentifiers, snap)
	metrics.RecordSnapshot(store.KeyIdentifiers, err)
	if err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return fmt.Errorf("flush identifier cache: %w", err)
	}

	for cat, m := range snap {
		metrics.ResolverEntries.WithLabelValues(string(cat)).Set(float64(len(m)))
	}
	logging.Debug().Int("entries", r.Len()).Msg("Identifier cache persisted")
	return nil
}

// Load hydrates the cache from the last snapshot and returns the number of
// entries restored. A missing or unreadable snapshot is a fresh start.
func (r *Resolver) Load(ctx context.Context) int {
	if r.snapshots == nil {
		return 0
	}

	var snap Snapshot
	found, err := r.snapshots.Load(ctx, store.KeyIdentifiers, &snap)
	if err != nil {
		logging.Warn().Err(err).Msg("Identifier snapshot unreadable, starting fresh")
		return 0
	}
	if !found {
		logging.Warn().Msg("No identifier snapshot found, starting fresh")
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for cat, m := range snap {
		dst, ok := r.names[cat]
		if !ok {
			continue
		}
		for id, name := range m {
			if id > 0 && name != "" {
				dst[id] = name
				n++
			}
		}
	}
	r.dirty = false
	logging.Info().Int("entries", n).Msg("Identifier cache loaded")
	return n
}
