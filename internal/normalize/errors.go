// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package normalize

import (
	"errors"
	"fmt"

	"github.com/tomtom215/killstream/internal/models"
)

// ErrNormalizationFailed is matched by every error Normalize returns.
var ErrNormalizationFailed = errors.New("normalization failed")

// NormalizationError describes why a payload was rejected.
type NormalizationError struct {
	Source models.Source
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s payload: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s payload: %s", e.Source, e.Reason)
}

// Is makes errors.Is(err, ErrNormalizationFailed) hold.
func (e *NormalizationError) Is(target error) bool {
	return target == ErrNormalizationFailed
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

func fail(source models.Source, reason string, err error) error {
	return &NormalizationError{Source: source, Reason: reason, Err: err}
}
