// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package cache

import (
	"sync"
	"time"
)

// Defaults for NewClaimGuard when zero values are passed.
const (
	DefaultClaimRetention = 10 * time.Minute
	DefaultClaimCapacity  = 100000
)

type claimEntry struct {
	id        int64
	claimedAt time.Time
	prev      *claimEntry
	next      *claimEntry
}

// ClaimGuard records which event ids have already been taken for processing.
//
// Entries are kept in claim order in a doubly-linked list backed by a map,
// so the oldest claim is always at the tail. That ordering lets Sweep stop
// at the first live entry and lets capacity eviction drop the oldest claim
// in O(1). A duplicate claim does not refresh an entry: retention counts
// from the first claim.
type ClaimGuard struct {
	mu sync.Mutex

	retention time.Duration
	capacity  int
	now       func() time.Time

	items map[int64]*claimEntry
	head  *claimEntry // head.next is the newest claim
	tail  *claimEntry // tail.prev is the oldest claim

	claimed    int64
	duplicates int64
	evicted    int64
}

// NewClaimGuard returns a guard that remembers claims for retention and holds
// at most capacity ids.
func NewClaimGuard(retention time.Duration, capacity int) *ClaimGuard {
	if retention <= 0 {
		retention = DefaultClaimRetention
	}
	if capacity <= 0 {
		capacity = DefaultClaimCapacity
	}
	g := &ClaimGuard{
		retention: retention,
		capacity:  capacity,
		now:       time.Now,
		items:     make(map[int64]*claimEntry),
		head:      &claimEntry{},
		tail:      &claimEntry{},
	}
	g.head.next = g.tail
	g.tail.prev = g.head
	return g
}

// SetClock replaces the time source. Intended for tests.
func (g *ClaimGuard) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// Retention returns the configured retention window.
func (g *ClaimGuard) Retention() time.Duration {
	return g.retention
}

// TryClaim atomically checks and records id. It returns true for exactly one
// caller per id within the retention window.
func (g *ClaimGuard) TryClaim(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.items[id]; ok {
		if now.Sub(e.claimedAt) < g.retention {
			g.duplicates++
			return false
		}
		g.unlink(e)
	}

	e := &claimEntry{id: id, claimedAt: now}
	g.pushFront(e)
	g.items[id] = e
	g.claimed++

	for len(g.items) > g.capacity {
		g.unlink(g.tail.prev)
		g.evicted++
	}
	return true
}

// Claimed reports whether id is currently held, without claiming it.
func (g *ClaimGuard) Claimed(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.items[id]
	return ok && g.now().Sub(e.claimedAt) < g.retention
}

// Sweep drops every claim older than the retention window and returns how
// many were removed.
func (g *ClaimGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.retention)
	removed := 0
	for e := g.tail.prev; e != g.head; {
		if e.claimedAt.After(cutoff) {
			break
		}
		prev := e.prev
		g.unlink(e)
		removed++
		e = prev
	}
	return removed
}

// Len returns the number of ids held, including expired ones not yet swept.
func (g *ClaimGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// ClaimStats is a point-in-time view of guard activity.
type ClaimStats struct {
	Size       int
	Claimed    int64
	Duplicates int64
	Evicted    int64
}

// Stats returns counters since construction.
func (g *ClaimGuard) Stats() ClaimStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ClaimStats{
		Size:       len(g.items),
		Claimed:    g.claimed,
		Duplicates: g.duplicates,
		Evicted:    g.evicted,
	}
}

// must be called with mu held
func (g *ClaimGuard) pushFront(e *claimEntry) {
	e.prev = g.head
	e.next = g.head.next
	g.head.next.prev = e
	g.head.next = e
}

// must be called with mu held
func (g *ClaimGuard) unlink(e *claimEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(g.items, e.id)
}
