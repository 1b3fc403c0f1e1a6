// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package models

import "time"

// KillSummary is the enriched display record produced for every processed
// kill. The JSON names match what dashboard clients already consume.
type KillSummary struct {
	ID            int64     `json:"id"`
	Value         float64   `json:"val"`
	ValueLabel    string    `json:"valueLabel"`
	Ship          string    `json:"ship"`
	ShipID        int64     `json:"shipId"`
	System        string    `json:"system"`
	SystemID      int64     `json:"systemId"`
	Region        string    `json:"region"`
	LocationLabel string    `json:"locationLabel"`
	VictimName    string    `json:"victimName"`
	CorpName      string    `json:"corpName"`
	CorpID        int64     `json:"corpId,omitempty"`
	AllianceName  string    `json:"allianceName,omitempty"`
	Href          string    `json:"href"`
	KillboardURL  string    `json:"zkillUrl"`
	ShipImageURL  string    `json:"shipImageUrl"`
	CorpImageURL  string    `json:"corpImageUrl"`
	TotalScanned  int64     `json:"totalScanned"`
	Source        Source    `json:"source"`
	OccurredAt    time.Time `json:"occurredAt,omitempty"`
	Whale         bool      `json:"whale,omitempty"`
	InZone        bool      `json:"inZone,omitempty"`
	ScannedBy     string    `json:"scannedBy,omitempty"`
}

// StatsSnapshot is the persisted lifetime counter state.
type StatsSnapshot struct {
	TotalEvents int64   `json:"totalEvents"`
	TotalValue  float64 `json:"totalValue"`
}

// ScanStats is pushed to dashboards after every processed kill.
type ScanStats struct {
	TotalScanned int64 `json:"totalScanned"`
}

// PerfStats carries per-kill processing latency.
type PerfStats struct {
	KillID    int64   `json:"killID"`
	LatencyMS float64 `json:"latency"`
}
