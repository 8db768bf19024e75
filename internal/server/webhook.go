package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// Webhook event names.
const (
	EventConflictDetected       = "conflict.detected"
	EventConflictManualRequired = "conflict.manual_required"
	EventConflictResolved       = "conflict.resolved"
	EventConflictRolledBack     = "conflict.rolled_back"
)

// WebhookEvent represents the payload sent to webhook URLs.
type WebhookEvent struct {
	Event      string `json:"event"`
	ConflictID string `json:"conflict_id"`
	FilePath   string `json:"file_path,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Status     string `json:"status,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// WebhookConfig holds the list of configured webhook URLs.
type WebhookConfig struct {
	URLs []string
}

// WebhookNotifier sends HTTP POST notifications to configured webhook URLs.
type WebhookNotifier struct {
	config     *WebhookConfig
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewWebhookNotifier creates a webhook notifier. Returns nil if no URLs are configured.
func NewWebhookNotifier(cfg *WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		config:     cfg,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		retryDelay: time.Second,
	}
}

// NotifyConflict sends a conflict event to all configured webhook URLs.
// Runs asynchronously and does not block the caller.
func (wn *WebhookNotifier) NotifyConflict(event string, c *models.Conflict) {
	if wn == nil || c == nil {
		return
	}
	wn.notify(&WebhookEvent{
		Event:      event,
		ConflictID: c.ID,
		FilePath:   c.FilePath,
		Severity:   string(c.Severity),
		Status:     string(c.Status),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// NotifyRollback sends a rollback event for a conflict that may no longer be registered.
func (wn *WebhookNotifier) NotifyRollback(conflictID string) {
	if wn == nil {
		return
	}
	wn.notify(&WebhookEvent{
		Event:      EventConflictRolledBack,
		ConflictID: conflictID,
		Status:     string(models.StatusRolledBack),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (wn *WebhookNotifier) notify(event *WebhookEvent) {
	go wn.send(event)
}

// send delivers the webhook event to all configured URLs.
func (wn *WebhookNotifier) send(event *WebhookEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		wn.logger.Error("webhook: marshal event", "error", err)
		return
	}

	for _, url := range wn.config.URLs {
		if err := wn.post(url, data); err != nil {
			wn.logger.Warn("webhook: delivery failed", "url", url, "error", err)
		} else {
			wn.logger.Debug("webhook: delivered", "url", url, "event", event.Event)
		}
	}
}

// post sends a single webhook POST with retry (up to 2 retries).
func (wn *WebhookNotifier) post(url string, data []byte) error {
	const maxRetries = 2

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * wn.retryDelay)
		}

		req, err := http.NewRequest("POST", url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "agentmerge-server/1.0")

		resp, err := wn.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr // don't retry 4xx
		}
	}

	return lastErr
}
