// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/killstream/internal/esi"
	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
	"github.com/tomtom215/killstream/internal/zone"
)

// ErrNoLocation is returned for a kill whose location cannot be determined
// from the envelope or the detail payload.
var ErrNoLocation = errors.New("kill has no location")

// Directory resolves identifiers to display names. Implementations never
// fail; unknown ids come back as models.UnknownName.
type Directory interface {
	Resolve(ctx context.Context, cat models.Category, id int64) string
	ResolveBatch(ctx context.Context, ids ...int64) map[int64]string
	Location(ctx context.Context, id int64) (models.Location, bool)
	RegionName(ctx context.Context, loc models.Location) string
}

// DetailFetcher retrieves a detail payload by reference.
type DetailFetcher interface {
	FetchKillmail(ctx context.Context, ref string) (*models.Killmail, error)
}

// ZoneDirectory answers zone-of-interest membership.
type ZoneDirectory interface {
	Membership(locationID int64) (zone.Membership, bool)
}

// Dashboard receives every processed kill.
type Dashboard interface {
	PushKill(summary *models.KillSummary)
	PushStats(stats models.ScanStats)
	PushPerf(perf models.PerfStats)
}

// Notifier posts intel for kills inside the zone.
type Notifier interface {
	NotifyIntel(ctx context.Context, summary *models.KillSummary, membership zone.Membership) error
}

// WhalePoster announces kills above the whale threshold.
type WhalePoster interface {
	PostWhale(ctx context.Context, summary *models.KillSummary) error
}

// Publisher forwards summaries to the event bus.
type Publisher interface {
	PublishKill(ctx context.Context, summary *models.KillSummary) error
}

// Counter tracks processed kills.
type Counter interface {
	Record(value float64) int64
}

// Deps are the processor's collaborators. Directory and Stats are
// required; any other field may be nil to disable that output.
type Deps struct {
	Directory Directory
	Details   DetailFetcher
	Zones     ZoneDirectory
	Stats     Counter
	Dashboard Dashboard
	Notifier  Notifier
	Whales    WhalePoster
	Bus       Publisher
}

// Processor enriches claimed kills and routes them to consumers.
type Processor struct {
	deps   Deps
	policy Policy
	now    func() time.Time
}

// New returns a processor.
func New(deps Deps, policy Policy) *Processor {
	return &Processor{deps: deps, policy: policy, now: time.Now}
}

// Policy returns the gating policy in force.
func (p *Processor) Policy() Policy { return p.policy }

type names struct {
	ship, victim, corp, alliance string
	system, region               string
}

// Process enriches ev and dispatches it. Every failure after the location
// check degrades the output instead of dropping the kill.
func (p *Processor) Process(ctx context.Context, ev *models.CanonicalEvent) error {
	start := p.now()
	log := logging.Ctx(ctx)

	p.ensureDetail(ctx, ev)
	if ev.LocationID <= 0 {
		metrics.RecordProcessed("no_location", 0)
		return fmt.Errorf("kill %d from %s: %w", ev.EventID, ev.Source, ErrNoLocation)
	}

	n := p.resolve(ctx, ev)
	total := p.deps.Stats.Record(ev.ValueScore)
	summary := p.summarize(ev, n, total)

	decision := p.policy.Evaluate(p.deps.Zones, ev.LocationID, ev.ValueScore)
	summary.Whale = decision.Whale
	summary.InZone = decision.Intel
	summary.ScannedBy = decision.Membership.ScannedBy
	metrics.GateDecisions.WithLabelValues(decision.Gate()).Inc()

	if d := p.deps.Dashboard; d != nil {
		d.PushKill(summary)
		d.PushStats(models.ScanStats{TotalScanned: total})
	}

	if decision.Intel && p.deps.Notifier != nil {
		err := p.deps.Notifier.NotifyIntel(ctx, summary, decision.Membership)
		metrics.RecordNotification("intel", err)
		if err != nil {
			log.Warn().Err(err).Str("system", summary.System).Msg("Intel notification failed")
		}
	}
	if decision.Whale && p.deps.Whales != nil {
		err := p.deps.Whales.PostWhale(ctx, summary)
		metrics.RecordNotification("whale", err)
		if err != nil {
			log.Warn().Err(err).Str("value", summary.ValueLabel).Msg("Whale post failed")
		}
	}
	if p.deps.Bus != nil {
		if err := p.deps.Bus.PublishKill(ctx, summary); err != nil {
			log.Warn().Err(err).Msg("Event bus publish failed")
		}
	}

	elapsed := p.now().Sub(start)
	metrics.RecordProcessed("ok", elapsed)
	if d := p.deps.Dashboard; d != nil {
		d.PushPerf(models.PerfStats{KillID: ev.EventID, LatencyMS: float64(elapsed.Microseconds()) / 1000})
	}

	log.Info().
		Str("ship", n.ship).
		Str("system", n.system).
		Str("value", summary.ValueLabel).
		Str("gate", decision.Gate()).
		Msg("Kill processed")
	return nil
}

// ensureDetail fetches the detail payload when the envelope lacks it. A
// failed fetch is logged and processing continues with what the envelope
// carried.
func (p *Processor) ensureDetail(ctx context.Context, ev *models.CanonicalEvent) {
	if ev.HasDetail() || ev.DetailRef == "" || p.deps.Details == nil {
		return
	}
	km, err := p.deps.Details.FetchKillmail(ctx, ev.DetailRef)
	if err != nil {
		metrics.DetailFetches.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("ref", ev.DetailRef).Int("status", esi.StatusCode(err)).
			Msg("Detail fetch failed, using envelope data")
		return
	}
	metrics.DetailFetches.WithLabelValues("ok").Inc()
	ev.ApplyDetail(km)
}

func (p *Processor) resolve(ctx context.Context, ev *models.CanonicalEvent) names {
	dir := p.deps.Directory

	// Fill every cold id with one bulk request before the per-id lookups.
	dir.ResolveBatch(ctx, ev.SubjectTypeID, ev.SubjectOwnerID, ev.SubjectGroupID, ev.SubjectAllianceID)

	var (
		n names
		g errgroup.Group
	)
	g.Go(func() error {
		n.ship = dir.Resolve(ctx, models.CategoryType, ev.SubjectTypeID)
		return nil
	})
	g.Go(func() error {
		n.victim = dir.Resolve(ctx, models.CategoryOwner, ev.SubjectOwnerID)
		return nil
	})
	g.Go(func() error {
		n.corp = dir.Resolve(ctx, models.CategoryGroup, ev.SubjectGroupID)
		return nil
	})
	if ev.SubjectAllianceID > 0 {
		g.Go(func() error {
			n.alliance = dir.Resolve(ctx, models.CategoryAlliance, ev.SubjectAllianceID)
			return nil
		})
	}
	g.Go(func() error {
		loc, ok := dir.Location(ctx, ev.LocationID)
		if !ok {
			n.system, n.region = esi.UnknownLocation, esi.RegionFallback
			return nil
		}
		n.system = loc.Name
		n.region = dir.RegionName(ctx, loc)
		return nil
	})
	_ = g.Wait()
	return n
}

func (p *Processor) summarize(ev *models.CanonicalEvent, n names, total int64) *models.KillSummary {
	s := &models.KillSummary{
		ID:            ev.EventID,
		Value:         ev.ValueScore,
		ValueLabel:    FormatISK(ev.ValueScore),
		Ship:          n.ship,
		ShipID:        ev.SubjectTypeID,
		System:        n.system,
		SystemID:      ev.LocationID,
		Region:        n.region,
		LocationLabel: LocationLabel(n.system, n.region, n.corp),
		VictimName:    n.victim,
		CorpName:      n.corp,
		CorpID:        ev.SubjectGroupID,
		AllianceName:  n.alliance,
		Href:          ev.DetailRef,
		KillboardURL:  KillboardURL(ev.EventID),
		ShipImageURL:  ShipImageURL(ev.SubjectTypeID),
		CorpImageURL:  CorpImageURL(ev.SubjectGroupID),
		TotalScanned:  total,
		Source:        ev.Source,
	}
	if s.Href == "" {
		s.Href = s.KillboardURL
	}
	if ev.RawDetail != nil {
		s.OccurredAt = ev.RawDetail.OccurredAt()
	}
	return s
}
