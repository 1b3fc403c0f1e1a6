// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordClaim(t *testing.T) {
	claimed := testutil.ToFloat64(DedupClaims.WithLabelValues("test-claim", "claimed"))
	dup := testutil.ToFloat64(DedupClaims.WithLabelValues("test-claim", "duplicate"))

	RecordClaim("test-claim", true)
	RecordClaim("test-claim", false)
	RecordClaim("test-claim", false)

	if got := testutil.ToFloat64(DedupClaims.WithLabelValues("test-claim", "claimed")) - claimed; got != 1 {
		t.Errorf("claimed delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DedupClaims.WithLabelValues("test-claim", "duplicate")) - dup; got != 2 {
		t.Errorf("duplicate delta = %v, want 2", got)
	}
}

func TestRecordNotification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("boom"), "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(NotificationsSent.WithLabelValues("test-"+tt.name, tt.result))
			RecordNotification("test-"+tt.name, tt.err)
			after := testutil.ToFloat64(NotificationsSent.WithLabelValues("test-"+tt.name, tt.result))
			if after-before != 1 {
				t.Errorf("delta = %v, want 1", after-before)
			}
		})
	}
}

func TestRecordBackoff(t *testing.T) {
	before := testutil.ToFloat64(PollBackoffSeconds.WithLabelValues("test-backoff", "rate_limited"))
	RecordBackoff("test-backoff", "rate_limited", 1500*time.Millisecond)
	after := testutil.ToFloat64(PollBackoffSeconds.WithLabelValues("test-backoff", "rate_limited"))
	if after-before != 1.5 {
		t.Errorf("delta = %v, want 1.5", after-before)
	}
}

func TestRecordProcessedOnlyObservesSuccess(t *testing.T) {
	before := testutil.ToFloat64(KillsProcessed.WithLabelValues("no_location"))
	RecordProcessed("no_location", time.Second)
	if got := testutil.ToFloat64(KillsProcessed.WithLabelValues("no_location")) - before; got != 1 {
		t.Errorf("no_location delta = %v, want 1", got)
	}
}
