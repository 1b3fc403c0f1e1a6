// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package main

import (
	"testing"

	"github.com/tomtom215/killstream/internal/config"
	"github.com/tomtom215/killstream/internal/processor"
)

func TestPolicyFromConfig(t *testing.T) {
	t.Parallel()

	def := processor.DefaultPolicy()

	p := policyFromConfig(config.GatingConfig{WhaleThreshold: 5e9})
	if p.WhaleThreshold != 5e9 || p.WormholeOnly {
		t.Errorf("policy = %+v", p)
	}
	if p.WormholeMin != def.WormholeMin || p.WormholeMax != def.WormholeMax {
		t.Errorf("range = %d..%d, want defaults", p.WormholeMin, p.WormholeMax)
	}
	if len(p.Excluded) != len(def.Excluded) {
		t.Errorf("Excluded = %v, want defaults", p.Excluded)
	}

	p = policyFromConfig(config.GatingConfig{
		WhaleThreshold:    1,
		WormholeOnly:      true,
		WormholeMin:       31000010,
		WormholeMax:       31000020,
		ExcludedLocations: []int64{},
	})
	if p.WormholeMin != 31000010 || p.WormholeMax != 31000020 || !p.WormholeOnly {
		t.Errorf("policy = %+v", p)
	}
	if len(p.Excluded) != 0 {
		t.Errorf("Excluded = %v, want empty", p.Excluded)
	}
}

func TestListenAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"::1", 80, "[::1]:80"},
	}
	for _, tt := range tests {
		if got := listenAddr(config.ServerConfig{Host: tt.host, Port: tt.port}); got != tt.want {
			t.Errorf("listenAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}
