// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package models

// Category is an identifier namespace. The string value doubles as the
// snapshot key and the upstream path segment.
type Category string

const (
	CategoryOwner    Category = "characters"
	CategoryGroup    Category = "corporations"
	CategoryAlliance Category = "alliances"
	CategoryType     Category = "types"
	CategoryLocation Category = "systems"
	CategoryRegion   Category = "regions"
)

// UnknownName is returned for any identifier that cannot be resolved.
const UnknownName = "Unknown"

// Categories lists every cached category in snapshot order.
func Categories() []Category {
	return []Category{
		CategoryOwner,
		CategoryGroup,
		CategoryAlliance,
		CategoryType,
		CategoryLocation,
		CategoryRegion,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Location is an entry of the static location table.
type Location struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	RegionID        int64   `json:"region_id,omitempty"`
	ConstellationID int64   `json:"constellation_id,omitempty"`
	Security        float64 `json:"security,omitempty"`
}
