package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xiaot623/gogo/therapy/internal/domain"
)

const (
	webhookMaxRetries      = 3
	webhookInitialInterval = 200 * time.Millisecond
)

// WebhookSink POSTs events as JSON to a collaborator URL.
type WebhookSink struct {
	url             string
	httpClient      *http.Client
	maxRetries      uint64
	initialInterval time.Duration
}

// NewWebhookSink creates a webhook sink. It returns nil when url is empty.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if url == "" {
		return nil
	}
	return &WebhookSink{
		url:             url,
		httpClient:      &http.Client{Timeout: timeout},
		maxRetries:      webhookMaxRetries,
		initialInterval: webhookInitialInterval,
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

// Deliver sends the event, retrying on transport errors and 5xx/429 responses.
func (w *WebhookSink) Deliver(ctx context.Context, ev domain.SessionEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialInterval
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.Retry(func() error {
		return w.post(ctx, body)
	}, backoff.WithContext(backoff.WithMaxRetries(b, w.maxRetries), ctx))
}

func (w *WebhookSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("webhook rejected event with status %d", resp.StatusCode))
	}
}
