// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package processor

import (
	"slices"

	"github.com/tomtom215/killstream/internal/zone"
)

// Wormhole location id range and the one connected hub excluded from it.
const (
	WormholeMin int64 = 31000001
	WormholeMax int64 = 32000000
	Thera       int64 = 31000005
)

// DefaultWhaleThreshold is the value at or above which a kill is a whale.
const DefaultWhaleThreshold = 20e9

// Policy decides which kills reach the notification collaborators.
type Policy struct {
	WhaleThreshold float64
	WormholeOnly   bool
	WormholeMin    int64
	WormholeMax    int64
	Excluded       []int64
}

// DefaultPolicy watches wormhole space minus Thera.
func DefaultPolicy() Policy {
	return Policy{
		WhaleThreshold: DefaultWhaleThreshold,
		WormholeOnly:   true,
		WormholeMin:    WormholeMin,
		WormholeMax:    WormholeMax,
		Excluded:       []int64{Thera},
	}
}

// IsWhale reports whether value clears the whale threshold. It does not
// depend on the zone.
func (p Policy) IsWhale(value float64) bool {
	return p.WhaleThreshold > 0 && value >= p.WhaleThreshold
}

// Eligible reports whether locationID may be routed as zone intel at all.
func (p Policy) Eligible(locationID int64) bool {
	if locationID <= 0 || slices.Contains(p.Excluded, locationID) {
		return false
	}
	if p.WormholeOnly {
		return locationID >= p.WormholeMin && locationID <= p.WormholeMax
	}
	return true
}

// Decision is the gating result for one kill.
type Decision struct {
	Whale      bool
	Intel      bool
	Membership zone.Membership
}

// Gate is a label for metrics.
func (d Decision) Gate() string {
	switch {
	case d.Whale && d.Intel:
		return "both"
	case d.Whale:
		return "whale"
	case d.Intel:
		return "intel"
	default:
		return "none"
	}
}

// Evaluate applies the policy. zones may be nil, in which case no kill is
// routed as intel.
func (p Policy) Evaluate(zones ZoneDirectory, locationID int64, value float64) Decision {
	d := Decision{Whale: p.IsWhale(value)}
	if zones == nil || !p.Eligible(locationID) {
		return d
	}
	if m, ok := zones.Membership(locationID); ok && m.IsMember {
		d.Intel = true
		d.Membership = m
	}
	return d
}
