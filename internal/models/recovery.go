// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package models

import "time"

// PollerState is the coarse state of a source poller.
type PollerState string

const (
	StateIdle     PollerState = "idle"
	StatePriming  PollerState = "priming"
	StatePolling  PollerState = "polling"
	StateBackoff  PollerState = "backoff"
	StateStopped  PollerState = "stopped"
	StateDisabled PollerState = "disabled"
)

// RecoveryState is a point-in-time view of a poller's cursor and recovery
// counters.
type RecoveryState struct {
	Source              Source      `json:"source"`
	State               PollerState `json:"state"`
	Cursor              int64       `json:"cursor,omitempty"`
	ConsecutiveNotFound int         `json:"consecutiveNotFound"`
	SustainedNotFound   int         `json:"sustainedNotFound"`
	RateLimitedUntil    time.Time   `json:"rateLimitedUntil,omitempty"`
	LastSuccess         time.Time   `json:"lastSuccess,omitempty"`
	LastOutcome         string      `json:"lastOutcome,omitempty"`
	Received            int64       `json:"received"`
	Malformed           int64       `json:"malformed"`
}
