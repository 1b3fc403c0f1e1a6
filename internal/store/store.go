// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package store persists small JSON snapshots (identifier cache, lifetime
// counters) between runs.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Snapshot keys used by the pipeline.
const (
	KeyIdentifiers = "identifiers"
	KeyStats       = "stats"
)

// ErrCorrupt is returned by Load when a snapshot exists but cannot be decoded.
var ErrCorrupt = errors.New("snapshot corrupt")

// SnapshotStore saves and restores JSON-encodable values by key.
//
// Load reports found=false with a nil error when no snapshot exists, which
// callers treat as a fresh start.
type SnapshotStore interface {
	Load(ctx context.Context, key string, v any) (found bool, err error)
	Save(ctx context.Context, key string, v any) error
	Close() error
}

// Type selects a SnapshotStore backend.
type Type string

const (
	// TypeFile writes one JSON file per key.
	TypeFile Type = "file"
	// TypeBadger stores every key in a BadgerDB directory.
	TypeBadger Type = "badger"
)

// Open returns the backend for storeType rooted at path.
func Open(storeType Type, path string) (SnapshotStore, error) {
	switch storeType {
	case TypeFile, "":
		return NewFileStore(path)
	case TypeBadger:
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown snapshot store type %q", storeType)
	}
}
