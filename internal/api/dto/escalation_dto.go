package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// AcknowledgeRequest marks an escalation acknowledged.
type AcknowledgeRequest struct {
	UserID string `json:"user_id"`
}

// EscalationItem is a serialized ledger entry.
type EscalationItem struct {
	ID              string     `json:"id"`
	TicketID        string     `json:"ticket_id"`
	Episode         int        `json:"episode"`
	Level           int        `json:"level"`
	EscalatedAt     time.Time  `json:"escalated_at"`
	NotifiedUserIDs []string   `json:"notified_user_ids"`
	PercentageUsed  int        `json:"percentage_used"`
	Acknowledged    bool       `json:"acknowledged"`
	AcknowledgedBy  *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
}

// TickResponse reports an on-demand tick run.
type TickResponse struct {
	Scanned   int `json:"scanned"`
	Escalated int `json:"escalated"`
	Failures  int `json:"failures"`
}

// EscalationFromDomain maps a ledger entry.
func EscalationFromDomain(e *domain.Escalation) EscalationItem {
	return EscalationItem{
		ID:              e.ID,
		TicketID:        e.TicketID,
		Episode:         e.Episode,
		Level:           int(e.Level),
		EscalatedAt:     e.EscalatedAt,
		NotifiedUserIDs: e.NotifiedUserIDs,
		PercentageUsed:  e.PercentageUsed,
		Acknowledged:    e.Acknowledged,
		AcknowledgedBy:  e.AcknowledgedBy,
		AcknowledgedAt:  e.AcknowledgedAt,
	}
}
