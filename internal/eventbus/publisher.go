// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

// Package eventbus publishes enriched kills to NATS so other services can
// consume the stream without polling the dashboard.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/tomtom215/killstream/internal/logging"
	"github.com/tomtom215/killstream/internal/metrics"
	"github.com/tomtom215/killstream/internal/models"
)

// ErrClosed is returned by PublishKill after Close.
var ErrClosed = errors.New("event bus publisher is closed")

// Config configures the publisher.
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
	Close()
}

type dialer func(url string, opts ...nats.Option) (conn, error)

func natsDial(url string, opts ...nats.Option) (conn, error) {
	return nats.Connect(url, opts...)
}

// Publisher sends one message per processed kill on
// {prefix}.kills.{source}. The kill id is set as the message id so a
// JetStream stream on those subjects drops republished kills.
type Publisher struct {
	conn   conn
	prefix string

	mu     sync.RWMutex
	closed bool
}

// Connect dials NATS. The connection retries in the background when the
// server is not reachable yet.
func Connect(cfg Config) (*Publisher, error) {
	return connectWith(cfg, natsDial)
}

func connectWith(cfg Config, dial dialer) (*Publisher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "killstream"
	}
	if cfg.Name == "" {
		cfg.Name = "killstream"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	log := logging.WithComponent("eventbus")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	c, err := dial(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Info().Str("subject_prefix", cfg.SubjectPrefix).Msg("Event bus connected")
	return &Publisher{conn: c, prefix: strings.TrimSuffix(cfg.SubjectPrefix, ".")}, nil
}

// Subject returns the subject a summary is published on.
func (p *Publisher) Subject(s *models.KillSummary) string {
	source := string(s.Source)
	if source == "" {
		source = "unknown"
	}
	return p.prefix + ".kills." + source
}

// PublishKill publishes s. ctx is accepted for interface symmetry; NATS
// core publishes do not block on the network.
func (p *Publisher) PublishKill(_ context.Context, s *models.KillSummary) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal kill %d: %w", s.ID, err)
	}
	msg := nats.NewMsg(p.Subject(s))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, strconv.FormatInt(s.ID, 10))
	if s.Whale {
		msg.Header.Set("Killstream-Whale", "true")
	}
	if s.InZone {
		msg.Header.Set("Killstream-Zone", "true")
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		metrics.NATSMessagesPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish kill %d: %w", s.ID, err)
	}
	metrics.NATSMessagesPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
