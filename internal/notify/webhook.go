// Killstream - Killmail Ingestion and Enrichment Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/killstream

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned by a webhook with no URL.
var ErrNotConfigured = errors.New("webhook url not configured")

// DeliveryError is a non-2xx webhook response.
type DeliveryError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether a retry could succeed.
func (e *DeliveryError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Webhook posts JSON payloads to one chat webhook URL. Posts are paced by a
// token bucket so a burst of kills does not trip the receiver's limits.
type Webhook struct {
	url      string
	username string
	client   *http.Client
	limiter  *rate.Limiter
}

// WebhookConfig configures a Webhook.
type WebhookConfig struct {
	URL      string
	Username string
	Timeout  time.Duration
	// PerMinute caps posts per minute. Zero disables pacing.
	PerMinute int
}

// NewWebhook returns a webhook client.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	w := &Webhook{
		url:      cfg.URL,
		username: cfg.Username,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.PerMinute > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60), cfg.PerMinute)
	}
	return w
}

// Configured reports whether the webhook has a URL.
func (w *Webhook) Configured() bool {
	return w != nil && w.url != ""
}

// Host returns the webhook host for logging. The full URL carries a secret
// token and is never logged.
func (w *Webhook) Host() string {
	u, err := url.Parse(w.url)
	if err != nil {
		return ""
	}
	return u.Host
}

// Send posts msg.
func (w *Webhook) Send(ctx context.Context, msg *Message) error {
	if !w.Configured() {
		return ErrNotConfigured
	}
	if msg.Username == "" {
		msg.Username = w.username
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook pacing: %w", err)
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook to %s: %w", w.Host(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	derr := &DeliveryError{StatusCode: resp.StatusCode, Body: string(snippet)}
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			derr.RetryAfter = time.Duration(secs * float64(time.Second))
		}
	}
	return derr
}

// Message is a chat webhook payload.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is a rich message block.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedImage references an image by URL.
type EmbedImage struct {
	URL string `json:"url"`
}

// EmbedFooter is the small text under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedField is one name/value row.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
