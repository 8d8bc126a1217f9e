package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// WebhookChannel posts {"text": ...} to an incoming webhook (Slack compatible)
type WebhookChannel struct {
	webhookURL string
	client     *http.Client
	limiter    *rate.Limiter
}

// NewWebhookChannel creates a webhook channel sending at most ratePerSecond
// messages per second. Zero disables pacing.
func NewWebhookChannel(webhookURL string, ratePerSecond float64) *WebhookChannel {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &WebhookChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (w *WebhookChannel) Name() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, alert AlertPayload) error {
	if w.webhookURL == "" {
		return nil
	}

	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limit: %w", err)
	}

	jsonBody, err := json.Marshal(map[string]string{"text": alert.Text()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook failed with status: %d, response: %s", resp.StatusCode, string(body))
	}

	return nil
}
