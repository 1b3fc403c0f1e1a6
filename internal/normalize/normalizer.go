// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package normalize

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/killstream/internal/models"
)

// DefaultDetailBaseURL is where detail payloads are fetched from when a
// payload only carries the kill id and hash.
const DefaultDetailBaseURL = "https://esi.evetech.net/latest"

// Shape identifies the payload family detected for a document.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeLiveEnvelope
	ShapeLivePackage
	ShapeArchiveFlat
	ShapeArchiveNested
	ShapeKillmailBundle
)

func (s Shape) String() string {
	switch s {
	case ShapeLiveEnvelope:
		return "live_envelope"
	case ShapeLivePackage:
		return "live_package"
	case ShapeArchiveFlat:
		return "archive_flat"
	case ShapeArchiveNested:
		return "archive_nested"
	case ShapeKillmailBundle:
		return "killmail_bundle"
	default:
		return "unknown"
	}
}

// Normalizer is stateless apart from its configuration and safe for
// concurrent use.
type Normalizer struct {
	detailBase string
	now        func() time.Time
}

// New returns a Normalizer building detail references under detailBase.
// An empty detailBase selects DefaultDetailBaseURL.
func New(detailBase string) *Normalizer {
	if detailBase == "" {
		detailBase = DefaultDetailBaseURL
	}
	return &Normalizer{
		detailBase: strings.TrimRight(detailBase, "/"),
		now:        time.Now,
	}
}

// Normalize decodes raw and extracts a canonical event.
func (n *Normalizer) Normalize(raw []byte, source models.Source) (*models.CanonicalEvent, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fail(source, "empty payload", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fail(source, "invalid json", err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, fail(source, fmt.Sprintf("expected object, got %T", doc), nil)
	}
	return n.NormalizeMap(m, source)
}

// NormalizeMap extracts a canonical event from an already decoded document.
func (n *Normalizer) NormalizeMap(doc map[string]any, source models.Source) (*models.CanonicalEvent, error) {
	if doc == nil {
		return nil, fail(source, "nil document", nil)
	}

	var (
		id     int64
		zkb    map[string]any
		detail map[string]any
	)

	shape := Detect(doc)
	switch shape {
	case ShapeLiveEnvelope:
		pkg, _ := object(doc, "package")
		detail = firstObject(ref(pkg, "esi"), ref(pkg, "killmail"))
		id = firstID(ref(pkg, "killID"), ref(pkg, "killmail_id"), ref(detail, "killmail_id"))
		zkb, _ = object(pkg, "zkb")
	case ShapeLivePackage:
		detail = firstObject(ref(doc, "esi"), ref(doc, "killmail"))
		id = firstID(ref(doc, "killID"), ref(doc, "killmail_id"), ref(detail, "killmail_id"))
		zkb, _ = object(doc, "zkb")
	case ShapeArchiveFlat:
		detail = firstObject(ref(doc, "esi"), ref(doc, "killmail"))
		id = firstID(ref(doc, "killmail_id"), ref(doc, "killID"), ref(detail, "killmail_id"))
		zkb, _ = object(doc, "zkb")
	case ShapeArchiveNested:
		zk, _ := object(doc, "zkill")
		detail = firstObject(ref(doc, "esi"), ref(doc, "killmail"))
		id = firstID(ref(zk, "killID"), ref(zk, "killmail_id"), ref(detail, "killmail_id"))
		zkb = firstObject(ref(zk, "zkb"), ref(doc, "zkb"))
	case ShapeKillmailBundle:
		detail, _ = object(doc, "killmail")
		id = firstID(ref(detail, "killmail_id"), ref(doc, "killID"))
		zkb, _ = object(doc, "zkb")
	default:
		if _, present := doc["package"]; present {
			return nil, fail(source, "empty package", nil)
		}
		return nil, fail(source, "unrecognized payload shape", nil)
	}

	if id <= 0 {
		return nil, fail(source, shape.String()+": no usable event id", nil)
	}

	ev := &models.CanonicalEvent{
		EventID:    id,
		Source:     source,
		ReceivedAt: n.now(),
	}
	if zkb != nil {
		ev.ValueScore = toValue(zkb["totalValue"])
		ev.Hash = pickStr(zkb, "hash")
		ev.DetailRef = pickStr(zkb, "href")
	}
	if ev.DetailRef == "" && ev.Hash != "" {
		ev.DetailRef = fmt.Sprintf("%s/killmails/%d/%s/", n.detailBase, id, ev.Hash)
	}

	if km := decodeDetail(detail); km != nil {
		if km.KillmailID == 0 {
			km.KillmailID = id
		}
		if km.KillmailID == id {
			ev.ApplyDetail(km)
		}
	}
	return ev, nil
}

// Detect classifies a decoded document without extracting from it.
func Detect(doc map[string]any) Shape {
	if pkg, ok := object(doc, "package"); ok && len(pkg) > 0 {
		return ShapeLiveEnvelope
	}
	if _, ok := object(doc, "zkill"); ok {
		return ShapeArchiveNested
	}
	if _, ok := doc["killmail_id"]; ok {
		return ShapeArchiveFlat
	}
	if _, ok := object(doc, "esi"); ok {
		return ShapeArchiveFlat
	}
	if _, ok := doc["killID"]; ok {
		return ShapeLivePackage
	}
	if _, ok := object(doc, "killmail"); ok {
		return ShapeKillmailBundle
	}
	return ShapeUnknown
}

// decodeDetail converts a detail object into a Killmail. A detail that does
// not decode is dropped; the event can still be enriched by fetching it.
func decodeDetail(detail map[string]any) *models.Killmail {
	if len(detail) == 0 {
		return nil
	}
	buf, err := json.Marshal(detail)
	if err != nil {
		return nil
	}
	var km models.Killmail
	if err := json.Unmarshal(buf, &km); err != nil {
		return nil
	}
	if km.SolarSystemID <= 0 && km.Victim.ShipTypeID <= 0 {
		return nil
	}
	return &km
}
