package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
)

// LogNotifier is the stub delivery channel: it logs each recipient and,
// when a webhook URL is configured, posts a JSON payload per escalation.
// Real email/chat channels live outside this service.
type LogNotifier struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
	client *http.Client
}

// NewLogNotifier creates the notifier.
func NewLogNotifier(logger *zap.Logger, cfg config.NotificationConfig) *LogNotifier {
	return &LogNotifier{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify logs the escalation per recipient and fires the webhook stub.
func (n *LogNotifier) Notify(ctx context.Context, notification Notification) []Delivery {
	deliveries := make([]Delivery, 0, len(notification.RecipientIDs))
	webhookErr := n.postWebhook(ctx, notification)
	for _, userID := range notification.RecipientIDs {
		n.logger.Info("escalation notification",
			zap.String("ticket_id", notification.Ticket.ID),
			zap.Int("level", int(notification.Escalation.Level)),
			zap.String("recipient", userID),
			zap.Duration("time_remaining", notification.TimeRemaining),
			zap.String("from", n.cfg.EmailFrom))
		deliveries = append(deliveries, Delivery{UserID: userID, Err: webhookErr})
	}
	return deliveries
}

func (n *LogNotifier) postWebhook(ctx context.Context, notification Notification) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"ticket_id":       notification.Ticket.ID,
		"external_key":    notification.Ticket.ExternalKey,
		"level":           notification.Escalation.Level,
		"percentage_used": notification.Escalation.PercentageUsed,
		"recipients":      notification.RecipientIDs,
		"time_remaining":  notification.TimeRemaining.String(),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
