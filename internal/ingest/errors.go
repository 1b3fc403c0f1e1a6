// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package ingest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/thejerf/suture/v4"
)

var (
	// ErrTransient covers network failures and 5xx responses.
	ErrTransient = errors.New("transient upstream failure")
	// ErrRateLimited is an upstream 429.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrNotFound is an upstream 404, the normal archive gap signal.
	ErrNotFound = errors.New("upstream not found")
	// ErrFatalConfiguration halts a poller whose endpoint is not configured.
	ErrFatalConfiguration = errors.New("fatal configuration error")
)

// fatalConfig wraps ErrFatalConfiguration so the supervisor does not
// restart the service that returned it.
func fatalConfig(service, reason string) error {
	return fmt.Errorf("%s: %w: %s: %w", service, ErrFatalConfiguration, reason, suture.ErrDoNotRestart)
}

// Outcome classifies a single upstream request.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeEmpty
	OutcomeNotFound
	OutcomeRateLimited
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeEmpty:
		return "empty"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "error"
	}
}

// Err maps an outcome to its sentinel, or nil for found and empty.
func (o Outcome) Err() error {
	switch o {
	case OutcomeNotFound:
		return ErrNotFound
	case OutcomeRateLimited:
		return ErrRateLimited
	case OutcomeError:
		return ErrTransient
	default:
		return nil
	}
}

// Classify maps an HTTP status and transport error to an outcome.
func Classify(status int, err error) Outcome {
	if err != nil {
		return OutcomeError
	}
	switch {
	case status == http.StatusOK:
		return OutcomeFound
	case status == http.StatusNoContent:
		return OutcomeEmpty
	case status == http.StatusNotFound:
		return OutcomeNotFound
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	default:
		return OutcomeError
	}
}
