// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tomtom215/killstream/internal/validation"
)

// ErrNoSource is returned when every ingestion source is disabled.
var ErrNoSource = errors.New("at least one of live, archive or firehose must be enabled")

// Validate runs the struct tag rules and then the cross-field checks.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateZone(); err != nil {
		return err
	}
	return c.validateNATS()
}

func (c *Config) validateSources() error {
	if !c.Live.Enabled && !c.Archive.Enabled && !c.Firehose.Enabled {
		return ErrNoSource
	}
	if c.Live.Enabled {
		if c.Live.URL == "" {
			return fmt.Errorf("live.url is required when live.enabled=true")
		}
		if c.Live.QueueID == "" {
			return fmt.Errorf("live.queue_id is required when live.enabled=true")
		}
	}
	if c.Firehose.Enabled {
		if err := validateScheme(c.Firehose.URL, "firehose.url", "ws", "wss"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive.base_url is required when archive.enabled=true")
	}
	if c.Archive.ResyncThreshold <= c.Archive.GapThreshold {
		return fmt.Errorf("archive.resync_threshold (%d) must exceed archive.gap_threshold (%d)",
			c.Archive.ResyncThreshold, c.Archive.GapThreshold)
	}
	return nil
}

func (c *Config) validateZone() error {
	if c.Zone.Enabled && c.Zone.URL == "" {
		return fmt.Errorf("zone.url is required when zone.enabled=true")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("nats.subject_prefix is required when nats.enabled=true")
	}
	return validateScheme(c.NATS.URL, "nats.url", "nats", "tls", "ws", "wss")
}

func validateScheme(raw, field string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", field)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s scheme must be one of %v, got %q", field, schemes, u.Scheme)
}
