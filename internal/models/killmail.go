// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package models

import "time"

// Killmail is the detail payload for a single kill.
type Killmail struct {
	KillmailID    int64      `json:"killmail_id"`
	KillmailTime  string     `json:"killmail_time,omitempty"`
	SolarSystemID int64      `json:"solar_system_id"`
	Victim        Victim     `json:"victim"`
	Attackers     []Attacker `json:"attackers,omitempty"`
}

// Victim describes the destroyed ship and its owner.
type Victim struct {
	CharacterID   int64 `json:"character_id,omitempty"`
	CorporationID int64 `json:"corporation_id,omitempty"`
	AllianceID    int64 `json:"alliance_id,omitempty"`
	ShipTypeID    int64 `json:"ship_type_id"`
	DamageTaken   int64 `json:"damage_taken,omitempty"`
}

// Attacker is one participant on the final blow list.
type Attacker struct {
	CharacterID    int64   `json:"character_id,omitempty"`
	CorporationID  int64   `json:"corporation_id,omitempty"`
	AllianceID     int64   `json:"alliance_id,omitempty"`
	ShipTypeID     int64   `json:"ship_type_id,omitempty"`
	WeaponTypeID   int64   `json:"weapon_type_id,omitempty"`
	DamageDone     int64   `json:"damage_done,omitempty"`
	FinalBlow      bool    `json:"final_blow,omitempty"`
	SecurityStatus float64 `json:"security_status,omitempty"`
}

// OccurredAt parses KillmailTime. The zero time is returned when absent or
// malformed.
func (k *Killmail) OccurredAt() time.Time {
	t, err := time.Parse(time.RFC3339, k.KillmailTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FinalBlow returns the attacker credited with the kill, if any.
func (k *Killmail) FinalBlow() (Attacker, bool) {
	for _, a := range k.Attackers {
		if a.FinalBlow {
			return a, true
		}
	}
	return Attacker{}, false
}
