package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers structured messages to the outside world.
type Notifier interface {
	Deliver(ctx context.Context, msg Message) error
}

// Discord delivers messages as webhook embeds. Delivery failures are for the
// caller to log; they are never retried within a run and never fatal.
type Discord struct {
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

// NewDiscord creates a Discord webhook notifier.
func NewDiscord(webhookURL string, log zerolog.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("client", "discord").Logger(),
	}
}

// Deliver posts one message to the webhook.
func (d *Discord) Deliver(ctx context.Context, msg Message) error {
	if d.webhookURL == "" {
		d.log.Warn().Str("title", msg.Title).Msg("No webhook URL configured, dropping notification")
		return nil
	}

	payload := struct {
		Embeds []Message `json:"embeds"`
	}{Embeds: []Message{msg}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, snippet)
	}

	d.log.Info().Str("title", msg.Title).Msg("Notification delivered")
	return nil
}

// Nop is a notifier that drops everything; used in tests and dry runs.
type Nop struct{}

// Deliver implements Notifier.
func (Nop) Deliver(context.Context, Message) error { return nil }
