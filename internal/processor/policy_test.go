// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package processor

import (
	"testing"

	"github.com/tomtom215/killstream/internal/zone"
)

func TestPolicyEligible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy Policy
		id     int64
		want   bool
	}{
		{"wormhole", DefaultPolicy(), 31000123, true},
		{"range start", DefaultPolicy(), WormholeMin, true},
		{"range end", DefaultPolicy(), WormholeMax, true},
		{"thera excluded", DefaultPolicy(), Thera, false},
		{"known space", DefaultPolicy(), 30000142, false},
		{"invalid", DefaultPolicy(), 0, false},
		{"known space allowed", Policy{WormholeOnly: false}, 30000142, true},
		{"custom exclusion", Policy{Excluded: []int64{30000142}}, 30000142, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.policy.Eligible(tt.id); got != tt.want {
				t.Errorf("Eligible(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestPolicyEvaluate(t *testing.T) {
	t.Parallel()

	zones := fakeZones{
		31000123: {IsMember: true, ScannedBy: "Scout"},
		31000200: {IsMember: false},
	}
	p := DefaultPolicy()

	tests := []struct {
		name  string
		zones ZoneDirectory
		id    int64
		value float64
		gate  string
	}{
		{"whale anywhere", zones, 30000142, 20e9, "whale"},
		{"just under threshold", zones, 30000142, 19.99e9, "none"},
		{"zone member", zones, 31000123, 1, "intel"},
		{"zone member whale", zones, 31000123, 25e9, "both"},
		{"listed but not member", zones, 31000200, 1, "none"},
		{"not listed", zones, 31000300, 1, "none"},
		{"no zone directory", nil, 31000123, 1, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := p.Evaluate(tt.zones, tt.id, tt.value)
			if d.Gate() != tt.gate {
				t.Errorf("Evaluate() gate = %s, want %s", d.Gate(), tt.gate)
			}
			if d.Intel && d.Membership.ScannedBy != "Scout" {
				t.Errorf("membership = %+v", d.Membership)
			}
		})
	}
}

func TestFormatISK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value float64
		want  string
	}{
		{25e9, "25.00B"},
		{1e9, "1.00B"},
		{999.9e6, "999.90M"},
		{1.5e6, "1.50M"},
		{0, "0.00M"},
	}
	for _, tt := range tests {
		if got := FormatISK(tt.value); got != tt.want {
			t.Errorf("FormatISK(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

var _ ZoneDirectory = (*zone.Mapper)(nil)
