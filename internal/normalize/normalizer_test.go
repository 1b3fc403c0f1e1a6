// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package normalize

import (
	"errors"
	"testing"

	"github.com/tomtom215/killstream/internal/models"
)

const detailJSON = `{"killmail_id":123456789,"killmail_time":"2026-01-02T03:04:05Z","solar_system_id":31000123,` +
	`"victim":{"character_id":95000001,"corporation_id":98000001,"ship_type_id":587},` +
	`"attackers":[{"character_id":95000002,"final_blow":true}]}`

func TestNormalizeShapes(t *testing.T) {
	t.Parallel()

	n := New("")

	tests := []struct {
		name       string
		source     models.Source
		payload    string
		wantShape  Shape
		wantValue  float64
		wantRef    string
		wantDetail bool
	}{
		{
			name:   "live envelope with href",
			source: models.SourceLive,
			payload: `{"package":{"killID":123456789,"zkb":{"totalValue":1500000.5,` +
				`"href":"https://esi.evetech.net/latest/killmails/123456789/abc/"}}}`,
			wantShape: ShapeLiveEnvelope,
			wantValue: 1500000.5,
			wantRef:   "https://esi.evetech.net/latest/killmails/123456789/abc/",
		},
		{
			name:       "live envelope with bundled killmail",
			source:     models.SourceLive,
			payload:    `{"package":{"killID":123456789,"zkb":{"totalValue":10,"hash":"abc"},"killmail":` + detailJSON + `}}`,
			wantShape:  ShapeLiveEnvelope,
			wantValue:  10,
			wantRef:    "https://esi.evetech.net/latest/killmails/123456789/abc/",
			wantDetail: true,
		},
		{
			name:      "bare live package",
			source:    models.SourceLive,
			payload:   `{"killID":"123456789","zkb":{"totalValue":"42"}}`,
			wantShape: ShapeLivePackage,
			wantValue: 42,
		},
		{
			name:       "live envelope id from bundled killmail only",
			source:     models.SourceLive,
			payload:    `{"package":{"killmail":` + detailJSON + `,"zkb":{"totalValue":5,"hash":"abc"}}}`,
			wantShape:  ShapeLiveEnvelope,
			wantValue:  5,
			wantRef:    "https://esi.evetech.net/latest/killmails/123456789/abc/",
			wantDetail: true,
		},
		{
			name:       "bare live package with empty killID",
			source:     models.SourceLive,
			payload:    `{"killID":"","killmail":` + detailJSON + `,"zkb":{"totalValue":6}}`,
			wantShape:  ShapeLivePackage,
			wantValue:  6,
			wantDetail: true,
		},
		{
			name:       "flat archive record",
			source:     models.SourceArchive,
			payload:    `{"killmail_id":123456789,"zkb":{"totalValue":99.5,"hash":"abc"},"esi":` + detailJSON + `}`,
			wantShape:  ShapeArchiveFlat,
			wantValue:  99.5,
			wantRef:    "https://esi.evetech.net/latest/killmails/123456789/abc/",
			wantDetail: true,
		},
		{
			name:       "nested archive record",
			source:     models.SourceArchive,
			payload:    `{"zkill":{"killID":123456789,"zkb":{"totalValue":7,"hash":"abc"}},"esi":` + detailJSON + `}`,
			wantShape:  ShapeArchiveNested,
			wantValue:  7,
			wantRef:    "https://esi.evetech.net/latest/killmails/123456789/abc/",
			wantDetail: true,
		},
		{
			name:       "nested archive id from detail only",
			source:     models.SourceArchive,
			payload:    `{"zkill":{"zkb":{"totalValue":7}},"esi":` + detailJSON + `}`,
			wantShape:  ShapeArchiveNested,
			wantValue:  7,
			wantDetail: true,
		},
		{
			name:       "killmail bundle",
			source:     models.SourceArchive,
			payload:    `{"killmail":` + detailJSON + `,"zkb":{"totalValue":1}}`,
			wantShape:  ShapeKillmailBundle,
			wantValue:  1,
			wantDetail: true,
		},
		{
			name:      "negative value clamps to zero",
			source:    models.SourceLive,
			payload:   `{"package":{"killID":123456789,"zkb":{"totalValue":-5}}}`,
			wantShape: ShapeLiveEnvelope,
		},
		{
			name:      "missing zkb is not a failure",
			source:    models.SourceLive,
			payload:   `{"package":{"killID":123456789}}`,
			wantShape: ShapeLiveEnvelope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev, err := n.Normalize([]byte(tt.payload), tt.source)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if ev.EventID != 123456789 {
				t.Errorf("EventID = %d, want 123456789", ev.EventID)
			}
			if ev.ValueScore != tt.wantValue {
				t.Errorf("ValueScore = %v, want %v", ev.ValueScore, tt.wantValue)
			}
			if ev.DetailRef != tt.wantRef {
				t.Errorf("DetailRef = %q, want %q", ev.DetailRef, tt.wantRef)
			}
			if ev.Source != tt.source {
				t.Errorf("Source = %q, want %q", ev.Source, tt.source)
			}
			if got := ev.HasDetail(); got != tt.wantDetail {
				t.Fatalf("HasDetail() = %v, want %v", got, tt.wantDetail)
			}
			if tt.wantDetail {
				if ev.LocationID != 31000123 {
					t.Errorf("LocationID = %d, want 31000123", ev.LocationID)
				}
				if ev.SubjectTypeID != 587 || ev.SubjectOwnerID != 95000001 || ev.SubjectGroupID != 98000001 {
					t.Errorf("subjects = %d/%d/%d", ev.SubjectTypeID, ev.SubjectOwnerID, ev.SubjectGroupID)
				}
			}
		})
	}
}

func TestNormalizeSameKillAcrossShapes(t *testing.T) {
	t.Parallel()

	n := New("https://esi.example.test/latest/")
	live, err := n.Normalize([]byte(`{"package":{"killID":555,"zkb":{"hash":"h1","totalValue":3}}}`), models.SourceLive)
	if err != nil {
		t.Fatal(err)
	}
	archive, err := n.Normalize([]byte(`{"zkill":{"killID":555,"zkb":{"hash":"h1","totalValue":3}},"esi":{"killmail_id":555,"solar_system_id":30000142,"victim":{"ship_type_id":670}}}`), models.SourceArchive)
	if err != nil {
		t.Fatal(err)
	}
	if live.EventID != archive.EventID {
		t.Errorf("event ids differ: %d vs %d", live.EventID, archive.EventID)
	}
	if live.DetailRef != "https://esi.example.test/latest/killmails/555/h1/" {
		t.Errorf("DetailRef = %q", live.DetailRef)
	}
	if live.DetailRef != archive.DetailRef {
		t.Errorf("detail refs differ: %q vs %q", live.DetailRef, archive.DetailRef)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	t.Parallel()

	n := New("")
	payloads := map[string]string{
		"empty":           ``,
		"whitespace":      `   `,
		"not json":        `<html>502</html>`,
		"array":           `[1,2,3]`,
		"string":          `"hello"`,
		"null package":    `{"package":null}`,
		"empty package":   `{"package":{}}`,
		"no id":           `{"package":{"zkb":{"totalValue":5}}}`,
		"zero id":         `{"killmail_id":0,"zkb":{}}`,
		"negative id":     `{"killID":-4}`,
		"fractional id":   `{"killID":1.5}`,
		"unknown shape":   `{"foo":"bar"}`,
		"truncated":       `{"package":{"killID":1`,
		"non-numeric id":  `{"killID":"abc"}`,
		"object as id":    `{"killmail_id":{"x":1}}`,
		"nested no ids":   `{"zkill":{},"esi":{}}`,
		"bundle no id":    `{"killmail":{"solar_system_id":1}}`,
		"id out of range": `{"killID":1e30}`,
	}

	for name, payload := range payloads {
		ev, err := n.Normalize([]byte(payload), models.SourceArchive)
		if err == nil {
			t.Errorf("%s: expected error, got event %+v", name, ev)
			continue
		}
		if !errors.Is(err, ErrNormalizationFailed) {
			t.Errorf("%s: error %v does not match ErrNormalizationFailed", name, err)
		}
		var nerr *NormalizationError
		if !errors.As(err, &nerr) || nerr.Source != models.SourceArchive {
			t.Errorf("%s: expected *NormalizationError with archive source, got %T", name, err)
		}
	}
}

func TestNormalizeDetailForOtherKillIgnored(t *testing.T) {
	t.Parallel()

	n := New("")
	ev, err := n.Normalize([]byte(`{"killmail_id":1,"esi":`+detailJSON+`}`), models.SourceArchive)
	if err != nil {
		t.Fatal(err)
	}
	if ev.HasDetail() {
		t.Error("detail belonging to another kill must not be attached")
	}
}

func FuzzNormalize(f *testing.F) {
	f.Add([]byte(`{"package":{"killID":1,"zkb":{"totalValue":1}}}`))
	f.Add([]byte(`{"zkill":{"killID":1},"esi":` + detailJSON + `}`))
	f.Add([]byte(`{"package":null}`))
	f.Add([]byte(`{"killmail_id":"1","esi":{"victim":[]}}`))
	f.Add([]byte(`null`))

	n := New("")
	f.Fuzz(func(t *testing.T, raw []byte) {
		ev, err := n.Normalize(raw, models.SourceLive)
		if err == nil && (ev == nil || ev.EventID <= 0) {
			t.Fatalf("success without a usable event: %+v", ev)
		}
		if err != nil && !errors.Is(err, ErrNormalizationFailed) {
			t.Fatalf("unexpected error type %T: %v", err, err)
		}
	})
}
