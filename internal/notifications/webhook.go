package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// WebhookConfig contains webhook sink configuration.
type WebhookConfig struct {
	URL string
	// RateLimit is the maximum number of deliveries per second. Events above
	// the limit are dropped, not queued; the sink is best-effort.
	RateLimit float64
	Client    *http.Client
}

// WebhookSink posts event payloads as JSON to a configured URL.
type WebhookSink struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 5
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &WebhookSink{
		url:     cfg.URL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(limit), int(limit)+1),
	}, nil
}

// Name implements Sink.
func (s *WebhookSink) Name() string { return "webhook" }

// Send implements Sink. It never waits for rate-limit headroom: an event over
// the limit is dropped so that publishing stays non-blocking for the caller.
func (s *WebhookSink) Send(ctx context.Context, event Event) error {
	if !s.limiter.Allow() {
		return fmt.Errorf("rate limit exceeded, event dropped")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
