// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package config

import "time"

// Config is the complete runtime configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Server     ServerConfig     `koanf:"server"`
	Live       LiveConfig       `koanf:"live"`
	Archive    ArchiveConfig    `koanf:"archive"`
	Firehose   FirehoseConfig   `koanf:"firehose"`
	Dedup      DedupConfig      `koanf:"dedup"`
	Ingest     IngestConfig     `koanf:"ingest"`
	ESI        ESIConfig        `koanf:"esi"`
	Storage    StorageConfig    `koanf:"storage"`
	Cache      CacheConfig      `koanf:"cache"`
	Stats      StatsConfig      `koanf:"stats"`
	Gating     GatingConfig     `koanf:"gating"`
	Zone       ZoneConfig       `koanf:"zone"`
	Notify     NotifyConfig     `koanf:"notify"`
	NATS       NATSConfig       `koanf:"nats"`
	Heartbeat  HeartbeatConfig  `koanf:"heartbeat"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the dashboard HTTP listener.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	StaticDir       string        `koanf:"static_dir"`
}

// LiveConfig is the long-poll live-tail queue.
type LiveConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url" validate:"omitempty,url"`
	QueueID          string        `koanf:"queue_id"`
	TTW              int           `koanf:"ttw" validate:"min=1,max=10"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimitBackoff time.Duration `koanf:"rate_limit_backoff" validate:"gt=0"`
	ErrorBackoff     time.Duration `koanf:"error_backoff" validate:"gt=0"`
}

// ArchiveConfig is the sequential archive replay and its recovery policy.
type ArchiveConfig struct {
	Enabled          bool          `koanf:"enabled"`
	BaseURL          string        `koanf:"base_url" validate:"omitempty,url"`
	PrimeOffset      int64         `koanf:"prime_offset" validate:"min=0"`
	GapThreshold     int           `koanf:"gap_threshold" validate:"min=1"`
	ResyncThreshold  int           `koanf:"resync_threshold" validate:"min=1"`
	GapDelay         time.Duration `koanf:"gap_delay" validate:"gte=0"`
	RateLimitBackoff time.Duration `koanf:"rate_limit_backoff" validate:"gt=0"`
	ErrorBackoff     time.Duration `koanf:"error_backoff" validate:"gt=0"`
	PrimeRetry       time.Duration `koanf:"prime_retry" validate:"gt=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
}

// FirehoseConfig is the optional push websocket feed.
type FirehoseConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	Channel        string        `koanf:"channel"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay" validate:"gt=0"`
}

// DedupConfig bounds the cross-source claim guard.
type DedupConfig struct {
	Retention     time.Duration `koanf:"retention" validate:"gt=0"`
	Capacity      int           `koanf:"capacity" validate:"min=1"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Sweep returns the claim sweep interval. Unset means half the retention.
func (d DedupConfig) Sweep() time.Duration {
	if d.SweepInterval > 0 {
		return d.SweepInterval
	}
	return d.Retention / 2
}

// IngestConfig sizes the processing worker pool.
type IngestConfig struct {
	Workers   int `koanf:"workers" validate:"min=1,max=256"`
	QueueSize int `koanf:"queue_size" validate:"min=0"`
}

// ESIConfig is the identifier and detail lookup service.
type ESIConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	UserAgent         string        `koanf:"user_agent" validate:"required"`
	CompatibilityDate string        `koanf:"compatibility_date"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit         float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"min=1"`
	BreakerFailures   uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// StorageConfig selects where snapshots are written.
type StorageConfig struct {
	Type string `koanf:"type" validate:"oneof=file badger"`
	Path string `koanf:"path" validate:"required"`
}

// CacheConfig controls the identifier cache.
type CacheConfig struct {
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gt=0"`
	SystemsPath   string        `koanf:"systems_path"`
}

// StatsConfig controls counter persistence.
type StatsConfig struct {
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gt=0"`
}

// GatingConfig decides which kills reach the notification collaborators.
type GatingConfig struct {
	WhaleThreshold    float64 `koanf:"whale_threshold" validate:"gt=0"`
	WormholeOnly      bool    `koanf:"wormhole_only"`
	WormholeMin       int64   `koanf:"wormhole_min"`
	WormholeMax       int64   `koanf:"wormhole_max" validate:"gtefield=WormholeMin"`
	ExcludedLocations []int64 `koanf:"excluded_locations"`
}

// ZoneConfig is the external chain-mapping service that defines the zone of
// interest.
type ZoneConfig struct {
	Enabled         bool          `koanf:"enabled"`
	URL             string        `koanf:"url" validate:"omitempty,url"`
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	MapURL          string        `koanf:"map_url"`
}

// NotifyConfig holds the outbound webhook endpoints.
type NotifyConfig struct {
	IntelWebhookURL  string        `koanf:"intel_webhook_url" validate:"omitempty,url"`
	WhaleWebhookURL  string        `koanf:"whale_webhook_url" validate:"omitempty,url"`
	StatusWebhookURL string        `koanf:"status_webhook_url" validate:"omitempty,url"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
}

// NATSConfig enables publishing enriched kills to a NATS subject.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	SubjectPrefix string        `koanf:"subject_prefix"`
	Name          string        `koanf:"name"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	MaxReconnects int           `koanf:"max_reconnects"`
}

// HeartbeatConfig controls the periodic status report.
type HeartbeatConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
}

// SupervisorConfig tunes the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
