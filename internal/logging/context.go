// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	killIDKey        contextKey = "kill_id"
)

// GenerateCorrelationID returns a short random id for tying together the
// log lines of one event as it moves through the pipeline.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID stores id on ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID stores a freshly generated correlation id on ctx.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithKillID stores the killmail id being processed on ctx.
func ContextWithKillID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, killIDKey, id)
}

// KillIDFromContext returns the stored killmail id or 0.
func KillIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(killIDKey).(int64); ok {
		return id
	}
	return 0
}

// Ctx returns the global logger enriched with the correlation and kill ids
// carried by ctx.
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("detail fetch failed")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if id := KillIDFromContext(ctx); id != 0 {
		lc = lc.Int64("kill_id", id)
	}
	l := lc.Logger()
	return &l
}
