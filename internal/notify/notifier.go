package notify

import (
	"context"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// Delivery is the per-recipient outcome of a notification attempt.
type Delivery struct {
	UserID string
	Err    error
}

// Notification carries everything a channel needs to tell a recipient about
// an escalation.
type Notification struct {
	Ticket        *domain.Ticket
	Escalation    *domain.Escalation
	RecipientIDs  []string
	TimeRemaining time.Duration
}

// Notifier dispatches escalation notifications. Implementations report
// per-recipient results and never return an error themselves; delivery
// failure must not affect the escalation ledger.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) []Delivery
}
