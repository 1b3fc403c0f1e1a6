// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package notify

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
)

const colorStatus = 0x2ECC71

// SessionCounter is the kill counter the heartbeat reports on.
type SessionCounter interface {
	Total() int64
	Session() int64
	ResetSession() int64
	Uptime() time.Duration
}

// Sizer reports how many entries a collection holds.
type Sizer interface {
	Len() int
}

// SizerFunc adapts a function to Sizer.
type SizerFunc func() int

// Len calls f.
func (f SizerFunc) Len() int { return f() }

// Report is one heartbeat.
type Report struct {
	Uptime       time.Duration
	SessionScans int64
	TotalScans   int64
	Systems      int
	CacheEntries int
	MemoryBytes  uint64
}

// Heartbeat periodically reports process health and resets the session
// counter once the report is delivered.
type Heartbeat struct {
	hook    *Webhook
	counter SessionCounter
	zones   Sizer
	cache   Sizer
	memory  func() uint64
}

// NewHeartbeat returns a heartbeat. hook may be unconfigured, in which case
// reports are only logged. zones and cache may be nil.
func NewHeartbeat(hook *Webhook, counter SessionCounter, zones, cache Sizer) *Heartbeat {
	return &Heartbeat{hook: hook, counter: counter, zones: zones, cache: cache, memory: heapInUse}
}

func heapInUse() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapInuse
}

// Collect gathers the current report without resetting anything.
func (h *Heartbeat) Collect() Report {
	r := Report{
		Uptime:       h.counter.Uptime(),
		SessionScans: h.counter.Session(),
		TotalScans:   h.counter.Total(),
		MemoryBytes:  h.memory(),
	}
	if h.zones != nil {
		r.Systems = h.zones.Len()
	}
	if h.cache != nil {
		r.CacheEntries = h.cache.Len()
	}
	return r
}

// Beat sends one report. The session counter is reset unless delivery
// failed, so undelivered scans roll into the next report.
func (h *Heartbeat) Beat(ctx context.Context) error {
	r := h.Collect()
	logging.Info().
		Str("uptime", FormatUptime(r.Uptime)).
		Int64("session_scans", r.SessionScans).
		Int64("total_scans", r.TotalScans).
		Int("systems", r.Systems).
		Int("cache_entries", r.CacheEntries).
		Str("memory", humanize.IBytes(r.MemoryBytes)).
		Msg("Heartbeat")

	if h.hook.Configured() {
		err := h.hook.Send(ctx, StatusMessage(r))
		metrics.RecordNotification("status", err)
		if err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
	}
	h.counter.ResetSession()
	return nil
}

// StatusMessage builds the status post for r.
func StatusMessage(r Report) *Message {
	return &Message{Embeds: []Embed{{
		Title: "Killstream status",
		Color: colorStatus,
		Fields: []EmbedField{
			{Name: "Uptime", Value: FormatUptime(r.Uptime), Inline: true},
			{Name: "Scans since last report", Value: humanize.Comma(r.SessionScans), Inline: true},
			{Name: "Total scans", Value: humanize.Comma(r.TotalScans), Inline: true},
			{Name: "Systems monitored", Value: humanize.Comma(int64(r.Systems)), Inline: true},
			{Name: "Cached names", Value: humanize.Comma(int64(r.CacheEntries)), Inline: true},
			{Name: "Memory", Value: humanize.IBytes(r.MemoryBytes), Inline: true},
		},
	}}}
}

// FormatUptime renders d as days, hours and minutes.
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	mins := int(d / time.Minute)
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
