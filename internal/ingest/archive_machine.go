// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"time"

	"github.com/tomtom215/killstream/internal/models"
)

// ArchivePolicy holds the archive recovery thresholds and delays.
type ArchivePolicy struct {
	PrimeOffset      int64
	GapThreshold     int
	ResyncThreshold  int
	GapDelay         time.Duration
	RateLimitBackoff time.Duration
	ErrorBackoff     time.Duration
	PrimeRetry       time.Duration
}

// DefaultArchivePolicy returns the production thresholds.
func DefaultArchivePolicy() ArchivePolicy {
	return ArchivePolicy{
		PrimeOffset:      2,
		GapThreshold:     3,
		ResyncThreshold:  30,
		GapDelay:         2 * time.Second,
		RateLimitBackoff: 60 * time.Second,
		ErrorBackoff:     5 * time.Second,
		PrimeRetry:       10 * time.Second,
	}
}

// Action names what the machine did with an outcome.
type Action string

const (
	ActionPrimed      Action = "primed"
	ActionPrimeRetry  Action = "prime_retry"
	ActionAdvance     Action = "advance"
	ActionRetry       Action = "retry"
	ActionGapSkip     Action = "gap_skip"
	ActionResync      Action = "resync"
	ActionRateLimited Action = "rate_limited"
	ActionError       Action = "error"
)

// Step is the machine's decision: what happened and how long to wait
// before the next request.
type Step struct {
	Action Action
	Delay  time.Duration
}

// ArchiveMachine is the archive poller's recovery state machine. It does no
// I/O: the poller reports outcomes and follows the returned steps.
//
// Priming finds the newest sequence and starts a few slots behind it.
// Polling requests the cursor slot. A found slot advances immediately. A
// missing slot is retried after a short delay until GapThreshold
// consecutive misses, then skipped. ResyncThreshold misses without any
// find means the cursor is lost, and the machine re-primes.
type ArchiveMachine struct {
	policy ArchivePolicy

	state            models.PollerState
	cursor           int64
	consecutive      int
	sustained        int
	rateLimitedUntil time.Time
	lastSuccess      time.Time
	lastAction       Action
}

// NewArchiveMachine returns a machine in the priming state.
func NewArchiveMachine(policy ArchivePolicy) *ArchiveMachine {
	if policy.GapThreshold < 1 {
		policy.GapThreshold = 1
	}
	if policy.ResyncThreshold <= policy.GapThreshold {
		policy.ResyncThreshold = policy.GapThreshold + 1
	}
	if policy.PrimeOffset < 0 {
		policy.PrimeOffset = 0
	}
	return &ArchiveMachine{policy: policy, state: models.StatePriming}
}

// State returns StatePriming or StatePolling.
func (m *ArchiveMachine) State() models.PollerState { return m.state }

// Cursor returns the next slot to request.
func (m *ArchiveMachine) Cursor() int64 { return m.cursor }

// Policy returns the effective policy.
func (m *ArchiveMachine) Policy() ArchivePolicy { return m.policy }

// Primed positions the cursor PrimeOffset slots behind latest.
func (m *ArchiveMachine) Primed(latest int64, now time.Time) Step {
	cursor := latest - m.policy.PrimeOffset
	if cursor < 0 {
		cursor = 0
	}
	m.cursor = cursor
	m.state = models.StatePolling
	m.consecutive = 0
	m.sustained = 0
	m.lastSuccess = now
	return m.step(ActionPrimed, 0)
}

// PrimeFailed reports a failed sequence lookup.
func (m *ArchiveMachine) PrimeFailed(outcome Outcome, now time.Time) Step {
	if outcome == OutcomeRateLimited {
		m.rateLimitedUntil = now.Add(m.policy.RateLimitBackoff)
		return m.step(ActionRateLimited, m.policy.RateLimitBackoff)
	}
	return m.step(ActionPrimeRetry, m.policy.PrimeRetry)
}

// Observe applies the outcome of requesting the cursor slot.
func (m *ArchiveMachine) Observe(outcome Outcome, now time.Time) Step {
	switch outcome {
	case OutcomeFound:
		m.cursor++
		m.consecutive = 0
		m.sustained = 0
		m.lastSuccess = now
		return m.step(ActionAdvance, 0)

	case OutcomeNotFound, OutcomeEmpty:
		m.consecutive++
		m.sustained++
		if m.sustained >= m.policy.ResyncThreshold {
			m.state = models.StatePriming
			m.consecutive = 0
			m.sustained = 0
			return m.step(ActionResync, 0)
		}
		if m.consecutive >= m.policy.GapThreshold {
			m.cursor++
			m.consecutive = 0
			return m.step(ActionGapSkip, 0)
		}
		return m.step(ActionRetry, m.policy.GapDelay)

	case OutcomeRateLimited:
		m.rateLimitedUntil = now.Add(m.policy.RateLimitBackoff)
		return m.step(ActionRateLimited, m.policy.RateLimitBackoff)

	default:
		return m.step(ActionError, m.policy.ErrorBackoff)
	}
}

func (m *ArchiveMachine) step(action Action, delay time.Duration) Step {
	m.lastAction = action
	return Step{Action: action, Delay: delay}
}

// Snapshot returns the recovery counters.
func (m *ArchiveMachine) Snapshot() models.RecoveryState {
	return models.RecoveryState{
		Source:              models.SourceArchive,
		State:               m.state,
		Cursor:              m.cursor,
		ConsecutiveNotFound: m.consecutive,
		SustainedNotFound:   m.sustained,
		RateLimitedUntil:    m.rateLimitedUntil,
		LastSuccess:         m.lastSuccess,
		LastOutcome:         string(m.lastAction),
	}
}
