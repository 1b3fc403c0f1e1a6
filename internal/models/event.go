// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package models

import "time"

// Source identifies which ingestion strategy produced an event.
type Source string

const (
	// SourceLive is the long-poll live-tail queue.
	SourceLive Source = "live"
	// SourceArchive is the sequential archive replay.
	SourceArchive Source = "archive"
	// SourceFirehose is the push websocket feed.
	SourceFirehose Source = "firehose"
)

// CanonicalEvent is the normalized form of any upstream killmail payload.
//
// EventID is identical for the same kill regardless of which source
// delivered it, which is what lets the dedup guard work across sources.
// Subject and location ids are zero when the payload did not carry them.
type CanonicalEvent struct {
	EventID           int64     `json:"event_id"`
	ValueScore        float64   `json:"value_score"`
	LocationID        int64     `json:"location_id,omitempty"`
	SubjectTypeID     int64     `json:"subject_type_id,omitempty"`
	SubjectOwnerID    int64     `json:"subject_owner_id,omitempty"`
	SubjectGroupID    int64     `json:"subject_group_id,omitempty"`
	SubjectAllianceID int64     `json:"subject_alliance_id,omitempty"`
	DetailRef         string    `json:"detail_ref,omitempty"`
	Hash              string    `json:"hash,omitempty"`
	RawDetail         *Killmail `json:"raw_detail,omitempty"`
	Source            Source    `json:"source"`
	ReceivedAt        time.Time `json:"received_at"`
}

// HasDetail reports whether the detail payload is already attached.
func (e *CanonicalEvent) HasDetail() bool {
	return e.RawDetail != nil && e.RawDetail.SolarSystemID > 0
}

// ApplyDetail lifts the subject and location fields out of a detail payload,
// keeping any value the envelope already supplied.
func (e *CanonicalEvent) ApplyDetail(km *Killmail) {
	if km == nil {
		return
	}
	e.RawDetail = km
	if e.LocationID == 0 {
		e.LocationID = km.SolarSystemID
	}
	if e.SubjectTypeID == 0 {
		e.SubjectTypeID = km.Victim.ShipTypeID
	}
	if e.SubjectOwnerID == 0 {
		e.SubjectOwnerID = km.Victim.CharacterID
	}
	if e.SubjectGroupID == 0 {
		e.SubjectGroupID = km.Victim.CorporationID
	}
	if e.SubjectAllianceID == 0 {
		e.SubjectAllianceID = km.Victim.AllianceID
	}
}
