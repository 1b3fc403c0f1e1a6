// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// object returns m[key] when it is a JSON object.
func object(m map[string]any, key string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key].(map[string]any)
	return v, ok
}

// firstObject returns the first key that holds a JSON object.
func firstObject(pairs ...objectRef) map[string]any {
	for _, p := range pairs {
		if v, ok := object(p.m, p.key); ok {
			return v
		}
	}
	return nil
}

type objectRef struct {
	m   map[string]any
	key string
}

func ref(m map[string]any, key string) objectRef {
	return objectRef{m: m, key: key}
}

// firstID walks refs in order and returns the first positive integer found.
func firstID(refs ...objectRef) int64 {
	for _, r := range refs {
		if r.m == nil {
			continue
		}
		if id, ok := toInt64(r.m[r.key]); ok && id > 0 {
			return id
		}
	}
	return 0
}

func pickStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// toInt64 accepts JSON numbers, whole floats and numeric strings.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil && wholeFloat(f) {
			return int64(f), true
		}
	case float64:
		if wholeFloat(n) {
			return int64(n), true
		}
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func wholeFloat(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 9e18
}

// toValue returns a finite, non-negative value score.
func toValue(v any) float64 {
	var f float64
	switch n := v.(type) {
	case json.Number:
		f, _ = n.Float64()
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
