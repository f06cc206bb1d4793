package events

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketStatusChanged    EventType = "ticket_status_changed"
	EventTicketAssigned         EventType = "ticket_assigned"
	EventTicketReopened         EventType = "ticket_reopened"
	EventTicketEscalated        EventType = "ticket_escalated"
	EventEscalationAcknowledged EventType = "escalation_acknowledged"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority           domain.TicketPriority `json:"priority"`
	Title              string                `json:"title"`
	ResponseDeadline   *time.Time            `json:"response_deadline,omitempty"`
	ResolutionDeadline *time.Time            `json:"resolution_deadline,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeStaffID *string `json:"assignee_staff_id,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	Episode int `json:"episode"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	EscalationID   string                 `json:"escalation_id"`
	Level          domain.EscalationLevel `json:"level"`
	PercentageUsed int                    `json:"percentage_used"`
	Recipients     []string               `json:"recipients"`
}

// EscalationAcknowledgedPayload payload.
type EscalationAcknowledgedPayload struct {
	EscalationID   string `json:"escalation_id"`
	AcknowledgedBy string `json:"acknowledged_by"`
}
