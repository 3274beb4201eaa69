package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"reel/internal/config"
)

const userAgent = "reel/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventTaskResult     Event = "task_result"
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventWorkerFailure  Event = "worker_failure"
	EventTest           Event = "test"
)

// Payload carries event fields. Values must be JSON encodable; errors are
// rendered with their message.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a webhook notifier when a URL is configured and a no-op
// otherwise.
func NewService(cfg *config.Config) Service {
	url := strings.TrimSpace(cfg.Notifications.WebhookURL)
	if url == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = max(cfg.Notifications.RetryMax, 0)
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &webhookService{
		endpoint:  url,
		client:    client,
		onSuccess: cfg.Notifications.OnSuccess,
		onFailure: cfg.Notifications.OnFailure,
	}
}

type envelope struct {
	Event  Event          `json:"event"`
	SentAt time.Time      `json:"sent_at"`
	Data   map[string]any `json:"data,omitempty"`
}

type webhookService struct {
	endpoint  string
	client    *retryablehttp.Client
	onSuccess bool
	onFailure bool
}

func (n *webhookService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if event == EventTaskResult && !n.wantsResult(payload) {
		return nil
	}

	body, err := json.Marshal(envelope{Event: event, SentAt: time.Now().UTC(), Data: normalize(payload)})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Reel-Event", string(event))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (n *webhookService) wantsResult(payload Payload) bool {
	success, _ := payload["success"].(bool)
	if success {
		return n.onSuccess
	}
	return n.onFailure
}

func normalize(payload Payload) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch value := v.(type) {
		case error:
			out[k] = value.Error()
		case time.Duration:
			out[k] = value.Seconds()
		default:
			out[k] = v
		}
	}
	return out
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
