// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package esi

import (
	"os"
	"path/filepath"
	"testing"
)

const keyedSystems = `{
	"30000142": {"name": "Jita", "constellation_id": 20000020, "region_id": 10000002, "security_status": 0.94},
	"30000144": {"name": "Perimeter", "constellation_id": 20000020, "region_id": 10000002},
	"30002187": {"name": "Amarr", "region_id": 10000043},
	"31000005": {"name": "Thera"},
	"31000123": {"name": "J123456"},
	"31000124": {"name": "J123457"}
}`

func TestParseLocationsShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want int
	}{
		{"keyed object", keyedSystems, 6},
		{"array", `[{"system_id": 30000142, "name": "Jita"}, {"id": 30002187, "name": "Amarr"}]`, 2},
		{"empty", ``, 0},
		{"skips nameless", `[{"system_id": 1}]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			locs, err := ParseLocations([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseLocations() error = %v", err)
			}
			if locs.Len() != tt.want {
				t.Errorf("Len() = %d, want %d", locs.Len(), tt.want)
			}
		})
	}

	if _, err := ParseLocations([]byte(`"nope"`)); err == nil {
		t.Error("ParseLocations(string) error = nil")
	}
}

func TestLocationsGet(t *testing.T) {
	t.Parallel()

	locs, err := ParseLocations([]byte(keyedSystems))
	if err != nil {
		t.Fatal(err)
	}
	jita, ok := locs.Get(30000142)
	if !ok {
		t.Fatal("Get(Jita) not found")
	}
	if jita.Name != "Jita" || jita.RegionID != 10000002 || jita.Security != 0.94 {
		t.Errorf("Get(Jita) = %+v", jita)
	}
	if _, ok := locs.Get(1); ok {
		t.Error("Get(1) found")
	}
}

func TestLocationsSearch(t *testing.T) {
	t.Parallel()

	locs, err := ParseLocations([]byte(keyedSystems))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"prefix case-insensitive", "j1", 10, []string{"J123456", "J123457"}},
		{"shortest first", "j", 10, []string{"Jita", "J123456", "J123457"}},
		{"limit", "j", 1, []string{"Jita"}},
		{"fuzzy fallback", "Amar r", 5, []string{"Amarr"}},
		{"typo", "Parimeter", 5, []string{"Perimeter"}},
		{"short query no fuzzy", "xy", 5, nil},
		{"blank", "  ", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := locs.Search(tt.query, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i].Name != tt.want[i] {
					t.Errorf("Search(%q)[%d] = %q, want %q", tt.query, i, got[i].Name, tt.want[i])
				}
			}
		})
	}
}

func TestFindByName(t *testing.T) {
	t.Parallel()

	locs, err := ParseLocations([]byte(keyedSystems))
	if err != nil {
		t.Fatal(err)
	}
	loc, ok := locs.FindByName("per")
	if !ok || loc.ID != 30000144 {
		t.Errorf("FindByName(per) = %+v, %v", loc, ok)
	}
}

func TestNilLocations(t *testing.T) {
	t.Parallel()

	var locs *Locations
	if locs.Len() != 0 {
		t.Error("nil Len() != 0")
	}
	if _, ok := locs.Get(30000142); ok {
		t.Error("nil Get() found")
	}
	if got := locs.Search("jita", 5); got != nil {
		t.Errorf("nil Search() = %v", got)
	}
}

func TestLoadLocations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "systems.json")
	if err := os.WriteFile(path, []byte(keyedSystems), 0o600); err != nil {
		t.Fatal(err)
	}
	locs, err := LoadLocations(path)
	if err != nil {
		t.Fatalf("LoadLocations() error = %v", err)
	}
	if locs.Len() != 6 {
		t.Errorf("Len() = %d, want 6", locs.Len())
	}
	if _, err := LoadLocations(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadLocations(missing) error = nil")
	}
}
