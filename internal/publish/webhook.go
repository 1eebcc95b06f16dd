package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
)

type webhookPayload struct {
	Platform  string               `json:"platform"`
	ContentID string               `json:"contentId"`
	UserID    string               `json:"userId"`
	Title     string               `json:"title"`
	Content   string               `json:"content"`
	Type      calendar.ContentType `json:"type"`
	SentAt    time.Time            `json:"sentAt"`
}

// WebhookPublisher POSTs content as JSON to a URL. Any non-2xx response is
// a delivery failure.
type WebhookPublisher struct {
	url    string
	client *http.Client
}

func NewWebhookPublisher(url string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookPublisher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *WebhookPublisher) Name() string {
	return "webhook"
}

func (p *WebhookPublisher) Publish(ctx context.Context, platform string, entry calendar.ContentEntry) error {
	body, err := json.Marshal(webhookPayload{
		Platform:  platform,
		ContentID: entry.ID,
		UserID:    entry.UserID,
		Title:     entry.Title,
		Content:   entry.Content,
		Type:      entry.Type,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
