// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package esi

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/cache"
	"github.com/tomtom215/killstream/internal/models"
)

// Locations is the static location table. It is read-only after load and
// safe for concurrent use; a nil *Locations behaves as an empty table.
type Locations struct {
	byID  map[int64]models.Location
	names *cache.Trie
}

type locationRecord struct {
	SystemID        int64   `json:"system_id"`
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	ConstellationID int64   `json:"constellation_id"`
	RegionID        int64   `json:"region_id"`
	SecurityStatus  float64 `json:"security_status"`
	Security        float64 `json:"security"`
}

func (r locationRecord) location(fallbackID int64) models.Location {
	id := r.SystemID
	if id == 0 {
		id = r.ID
	}
	if id == 0 {
		id = fallbackID
	}
	sec := r.SecurityStatus
	if sec == 0 {
		sec = r.Security
	}
	return models.Location{
		ID:              id,
		Name:            r.Name,
		RegionID:        r.RegionID,
		ConstellationID: r.ConstellationID,
		Security:        sec,
	}
}

// LoadLocations reads a location dataset from path.
func LoadLocations(path string) (*Locations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read location table: %w", err)
	}
	return ParseLocations(data)
}

// ParseLocations accepts either an object keyed by location id or an array
// of records.
func ParseLocations(data []byte) (*Locations, error) {
	data = bytes.TrimSpace(data)
	locs := &Locations{
		byID:  make(map[int64]models.Location),
		names: cache.NewTrie(),
	}
	if len(data) == 0 {
		return locs, nil
	}

	switch data[0] {
	case '{':
		var keyed map[string]locationRecord
		if err := json.Unmarshal(data, &keyed); err != nil {
			return nil, fmt.Errorf("decode location table: %w", err)
		}
		for key, rec := range keyed {
			id, _ := strconv.ParseInt(key, 10, 64)
			locs.add(rec.location(id))
		}
	case '[':
		var list []locationRecord
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode location table: %w", err)
		}
		for _, rec := range list {
			locs.add(rec.location(0))
		}
	default:
		return nil, fmt.Errorf("decode location table: unexpected %q", data[0])
	}
	return locs, nil
}

func (l *Locations) add(loc models.Location) {
	if loc.ID <= 0 || loc.Name == "" {
		return
	}
	l.byID[loc.ID] = loc
	l.names.Insert(loc.Name, loc.ID)
}

// Get returns the record for id.
func (l *Locations) Get(id int64) (models.Location, bool) {
	if l == nil {
		return models.Location{}, false
	}
	loc, ok := l.byID[id]
	return loc, ok
}

// Len returns the number of locations.
func (l *Locations) Len() int {
	if l == nil {
		return 0
	}
	return len(l.byID)
}

// FindByName returns the best location whose name starts with name.
func (l *Locations) FindByName(name string) (models.Location, bool) {
	hits := l.Search(name, 1)
	if len(hits) == 0 {
		return models.Location{}, false
	}
	return hits[0], true
}

// Search returns up to limit locations whose name starts with query, closest
// completions first. When nothing matches the prefix, names within a small
// edit distance of the query are returned instead, nearest first.
func (l *Locations) Search(query string, limit int) []models.Location {
	query = strings.TrimSpace(query)
	if l == nil || query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	var out []models.Location
	for _, hit := range l.names.PrefixSearch(query, limit) {
		if loc, ok := l.byID[hit.Data.(int64)]; ok {
			out = append(out, loc)
		}
	}
	if len(out) > 0 || len([]rune(query)) < 3 {
		return out
	}
	return l.fuzzy(strings.ToLower(query), limit)
}

func (l *Locations) fuzzy(query string, limit int) []models.Location {
	maxDist := len([]rune(query)) / 3
	if maxDist < 1 {
		maxDist = 1
	}

	type scored struct {
		loc  models.Location
		dist int
	}
	var candidates []scored
	l.names.Walk(func(r cache.TrieResult) bool {
		d := levenshtein.ComputeDistance(query, strings.ToLower(r.Value))
		if d <= maxDist {
			if loc, ok := l.byID[r.Data.(int64)]; ok {
				candidates = append(candidates, scored{loc: loc, dist: d})
			}
		}
		return true
	})

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].loc.Name < candidates[j].loc.Name
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.Location, len(candidates))
	for i, c := range candidates {
		out[i] = c.loc
	}
	return out
}
