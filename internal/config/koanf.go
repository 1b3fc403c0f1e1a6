// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/killstream/config.yaml",
	"/etc/killstream/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            3000,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			StaticDir:       "./public",
		},
		Live: LiveConfig{
			Enabled:          true,
			URL:              "https://zkillredisq.stream/listen.php",
			QueueID:          "killstream",
			TTW:              1,
			Timeout:          10 * time.Second,
			RateLimitBackoff: 5 * time.Second,
			ErrorBackoff:     time.Second,
		},
		Archive: ArchiveConfig{
			Enabled:          true,
			BaseURL:          "https://r2z2.zkillboard.com/ephemeral",
			PrimeOffset:      2,
			GapThreshold:     3,
			ResyncThreshold:  30,
			GapDelay:         2 * time.Second,
			RateLimitBackoff: 60 * time.Second,
			ErrorBackoff:     5 * time.Second,
			PrimeRetry:       10 * time.Second,
			Timeout:          10 * time.Second,
		},
		Firehose: FirehoseConfig{
			Enabled:        false,
			URL:            "wss://zkillboard.com/websocket/",
			Channel:        "killstream",
			ReconnectDelay: 5 * time.Second,
		},
		Dedup: DedupConfig{
			Retention: 10 * time.Minute,
			Capacity:  100000,
		},
		Ingest: IngestConfig{
			Workers:   4,
			QueueSize: 64,
		},
		ESI: ESIConfig{
			BaseURL:           "https://esi.evetech.net/latest",
			UserAgent:         "killstream/1.0 (+https://github.com/tomtom215/killstream)",
			CompatibilityDate: "2025-12-16",
			Timeout:           10 * time.Second,
			RateLimit:         20,
			Burst:             40,
			BreakerFailures:   10,
			BreakerTimeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Type: "file",
			Path: "./data",
		},
		Cache: CacheConfig{
			FlushInterval: time.Minute,
			SystemsPath:   "./data/systems.json",
		},
		Stats: StatsConfig{
			FlushInterval: time.Minute,
		},
		Gating: GatingConfig{
			WhaleThreshold:    20_000_000_000,
			WormholeOnly:      true,
			WormholeMin:       31000001,
			WormholeMax:       32000000,
			ExcludedLocations: []int64{31000005},
		},
		Zone: ZoneConfig{
			Enabled:         false,
			RefreshInterval: time.Minute,
			Timeout:         10 * time.Second,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "killstream",
			Name:          "killstream",
			ReconnectWait: 2 * time.Second,
			MaxReconnects: -1,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Interval: 24 * time.Hour,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths accept comma-separated values from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"gating.excluded_locations",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables to config paths. Unlisted variables
// are ignored so unrelated environment never leaks into the config.
var envMappings = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"http_enabled":      "server.enabled",
	"http_host":         "server.host",
	"http_port":         "server.port",
	"port":              "server.port",
	"http_timeout":      "server.timeout",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_reqs",
	"rate_limit_window": "server.rate_limit_window",
	"static_dir":        "server.static_dir",

	"live_enabled":            "live.enabled",
	"redisq_url":              "live.url",
	"zkill_queue_id":          "live.queue_id",
	"live_ttw":                "live.ttw",
	"live_timeout":            "live.timeout",
	"live_rate_limit_backoff": "live.rate_limit_backoff",
	"live_error_backoff":      "live.error_backoff",

	"archive_enabled":            "archive.enabled",
	"archive_base_url":           "archive.base_url",
	"archive_prime_offset":       "archive.prime_offset",
	"archive_gap_threshold":      "archive.gap_threshold",
	"archive_resync_threshold":   "archive.resync_threshold",
	"archive_gap_delay":          "archive.gap_delay",
	"archive_rate_limit_backoff": "archive.rate_limit_backoff",
	"archive_error_backoff":      "archive.error_backoff",
	"archive_prime_retry":        "archive.prime_retry",
	"archive_timeout":            "archive.timeout",

	"firehose_enabled": "firehose.enabled",
	"firehose_url":     "firehose.url",

	"dedup_retention":      "dedup.retention",
	"dedup_capacity":       "dedup.capacity",
	"dedup_sweep_interval": "dedup.sweep_interval",

	"ingest_workers":    "ingest.workers",
	"ingest_queue_size": "ingest.queue_size",

	"esi_base_url":           "esi.base_url",
	"esi_user_agent":         "esi.user_agent",
	"esi_compatibility_date": "esi.compatibility_date",
	"esi_timeout":            "esi.timeout",
	"esi_rate_limit":         "esi.rate_limit",
	"esi_burst":              "esi.burst",

	"storage_type":         "storage.type",
	"storage_path":         "storage.path",
	"cache_flush_interval": "cache.flush_interval",
	"systems_path":         "cache.systems_path",
	"stats_flush_interval": "stats.flush_interval",

	"min_isk_for_big_kill": "gating.whale_threshold",
	"whale_threshold":      "gating.whale_threshold",
	"wormhole_only":        "gating.wormhole_only",
	"excluded_locations":   "gating.excluded_locations",

	"zone_enabled":          "zone.enabled",
	"wingspan_api":          "zone.url",
	"zone_url":              "zone.url",
	"zone_refresh_interval": "zone.refresh_interval",
	"tripwire_url":          "zone.map_url",

	"intel_webhook_url":  "notify.intel_webhook_url",
	"whale_webhook_url":  "notify.whale_webhook_url",
	"status_webhook_url": "notify.status_webhook_url",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_subject_prefix": "nats.subject_prefix",

	"heartbeat_enabled":  "heartbeat.enabled",
	"heartbeat_interval": "heartbeat.interval",
}

// envTransformFunc maps e.g. ZKILL_QUEUE_ID to live.queue_id.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
