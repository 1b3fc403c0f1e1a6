// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package zone tracks the zone of interest: the set of locations currently
// mapped by the chain-mapping service.
package zone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
)

// UnknownScout is reported when a signature names no scanner.
const UnknownScout = "Unknown Scout"

// minLocationID filters placeholder ids the mapper uses for unscanned slots.
const minLocationID = 100

// ErrNoSignatures is returned when the mapper response carries no
// signatures field.
var ErrNoSignatures = errors.New("mapper response has no signatures")

// Membership describes a location inside the zone.
type Membership struct {
	IsMember  bool   `json:"isMember"`
	ScannedBy string `json:"scannedBy,omitempty"`
}

// Mapper polls the chain-mapping service and answers membership queries.
// A failed refresh keeps the previous set.
type Mapper struct {
	url    string
	client *http.Client

	mu          sync.RWMutex
	members     map[int64]Membership
	refreshedAt time.Time
}

// NewMapper returns a mapper for url with an empty zone.
func NewMapper(url string, timeout time.Duration) *Mapper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mapper{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		members: make(map[int64]Membership),
	}
}

// Membership reports whether locationID is in the zone and who scanned it.
func (m *Mapper) Membership(locationID int64) (Membership, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[locationID]
	return mem, ok
}

// Count returns the number of locations in the zone.
func (m *Mapper) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members)
}

// RefreshedAt returns the time of the last successful refresh.
func (m *Mapper) RefreshedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshedAt
}

// Replace swaps in a new zone.
func (m *Mapper) Replace(members map[int64]Membership) {
	m.mu.Lock()
	m.members = members
	m.refreshedAt = time.Now()
	m.mu.Unlock()
	metrics.ZoneLocations.Set(float64(len(members)))
}

// Refresh fetches the current signatures and replaces the zone.
func (m *Mapper) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("build mapper request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signatures: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signatures: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read signatures: %w", err)
	}

	members, err := ParseSignatures(body)
	if err != nil {
		return err
	}
	m.Replace(members)
	logging.Debug().Int("locations", len(members)).Msg("Zone refreshed")
	return nil
}

type signature struct {
	SystemID       flexibleID `json:"systemID"`
	ModifiedByName string     `json:"modifiedByName"`
	CreatedByName  string     `json:"createdByName"`
}

func (s signature) scanner() string {
	switch {
	case s.ModifiedByName != "":
		return s.ModifiedByName
	case s.CreatedByName != "":
		return s.CreatedByName
	default:
		return UnknownScout
	}
}

// ParseSignatures extracts the zone from a mapper response. Signatures may
// be keyed by signature id or listed as an array.
func ParseSignatures(body []byte) (map[int64]Membership, error) {
	var doc struct {
		Signatures json.RawMessage `json:"signatures"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode signatures: %w", err)
	}
	raw := bytes.TrimSpace(doc.Signatures)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoSignatures
	}

	var sigs []signature
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &sigs); err != nil {
			return nil, fmt.Errorf("decode signatures: %w", err)
		}
	} else {
		var keyed map[string]signature
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, fmt.Errorf("decode signatures: %w", err)
		}
		for _, s := range keyed {
			sigs = append(sigs, s)
		}
	}

	members := make(map[int64]Membership, len(sigs))
	for _, s := range sigs {
		id := int64(s.SystemID)
		if id <= minLocationID {
			continue
		}
		members[id] = Membership{IsMember: true, ScannedBy: s.scanner()}
	}
	return members, nil
}

// flexibleID decodes a number or a numeric string.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexibleID(n)
	return nil
}
