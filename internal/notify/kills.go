// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/zone"
)

const (
	colorIntel = 0xE74C3C
	colorWhale = 0x3498DB
)

// IntelNotifier posts kills inside the zone of interest.
type IntelNotifier struct {
	hook   *Webhook
	mapURL string
}

// NewIntelNotifier returns a notifier posting to hook. mapURL, when set, is
// linked from every post.
func NewIntelNotifier(hook *Webhook, mapURL string) *IntelNotifier {
	return &IntelNotifier{hook: hook, mapURL: mapURL}
}

// NotifyIntel posts one zone kill.
func (n *IntelNotifier) NotifyIntel(ctx context.Context, s *models.KillSummary, m zone.Membership) error {
	return n.hook.Send(ctx, IntelMessage(s, m, n.mapURL))
}

// IntelMessage builds the intel post for s.
func IntelMessage(s *models.KillSummary, m zone.Membership, mapURL string) *Message {
	scout := m.ScannedBy
	if scout == "" {
		scout = zone.UnknownScout
	}
	fields := []EmbedField{
		{Name: "Value", Value: s.ValueLabel + " ISK", Inline: true},
		{Name: "Victim", Value: s.VictimName, Inline: true},
		{Name: "Scanned by", Value: scout, Inline: true},
	}
	if mapURL != "" {
		fields = append(fields, EmbedField{Name: "Map", Value: mapURL})
	}
	return &Message{Embeds: []Embed{{
		Title:       fmt.Sprintf("%s destroyed in %s", s.Ship, s.System),
		Description: s.LocationLabel,
		URL:         s.KillboardURL,
		Color:       colorIntel,
		Timestamp:   timestamp(s.OccurredAt),
		Thumbnail:   &EmbedImage{URL: s.ShipImageURL},
		Fields:      fields,
		Footer:      &EmbedFooter{Text: fmt.Sprintf("Kill %d via %s", s.ID, s.Source)},
	}}}
}

// WhaleAnnouncer posts kills above the whale threshold.
type WhaleAnnouncer struct {
	hook *Webhook
}

// NewWhaleAnnouncer returns an announcer posting to hook.
func NewWhaleAnnouncer(hook *Webhook) *WhaleAnnouncer {
	return &WhaleAnnouncer{hook: hook}
}

// PostWhale announces one whale kill.
func (w *WhaleAnnouncer) PostWhale(ctx context.Context, s *models.KillSummary) error {
	return w.hook.Send(ctx, WhaleMessage(s))
}

// WhaleMessage builds the whale announcement for s.
func WhaleMessage(s *models.KillSummary) *Message {
	return &Message{
		Content: fmt.Sprintf("Whale down: %s worth %s ISK in %s (%s) %s",
			s.Ship, s.ValueLabel, s.System, s.Region, s.KillboardURL),
		Embeds: []Embed{{
			Title:     fmt.Sprintf("%s ISK %s", s.ValueLabel, s.Ship),
			URL:       s.KillboardURL,
			Color:     colorWhale,
			Timestamp: timestamp(s.OccurredAt),
			Thumbnail: &EmbedImage{URL: s.ShipImageURL},
			Fields: []EmbedField{
				{Name: "Pilot", Value: s.VictimName, Inline: true},
				{Name: "Corporation", Value: s.CorpName, Inline: true},
				{Name: "Location", Value: s.System + " / " + s.Region, Inline: true},
			},
		}},
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
