package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// CreateTicketRequest is the ticket creation payload.
type CreateTicketRequest struct {
	RequesterID string                `json:"requester_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// ChangeStatusRequest asks for a status transition.
type ChangeStatusRequest struct {
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason"`
	ActorType domain.SubjectType  `json:"actor_type"`
	ActorID   string              `json:"actor_id"`
}

// AssignRequest sets the ticket assignee.
type AssignRequest struct {
	StaffID string `json:"staff_id"`
	ActorID string `json:"actor_id"`
}

// ReopenRequest reopens a resolved or closed ticket.
type ReopenRequest struct {
	ActorType domain.SubjectType `json:"actor_type"`
	ActorID   string             `json:"actor_id"`
}

// TicketResponse is the serialized ticket including the SLA block.
type TicketResponse struct {
	ID                    string                `json:"id"`
	ExternalKey           string                `json:"external_key"`
	RequesterID           string                `json:"requester_id"`
	AssigneeID            *string               `json:"assignee_id,omitempty"`
	Title                 string                `json:"title"`
	Status                domain.TicketStatus   `json:"status"`
	Priority              domain.TicketPriority `json:"priority"`
	SlaResponseDeadline   *time.Time            `json:"sla_response_deadline,omitempty"`
	SlaResolutionDeadline *time.Time            `json:"sla_resolution_deadline,omitempty"`
	SlaResponseTime       *float64              `json:"sla_response_time,omitempty"`
	SlaResponseMet        *bool                 `json:"sla_response_met,omitempty"`
	SlaResolutionTime     *float64              `json:"sla_resolution_time,omitempty"`
	SlaResolutionMet      *bool                 `json:"sla_resolution_met,omitempty"`
	SlaPausedAt           *time.Time            `json:"sla_paused_at,omitempty"`
	SlaPausedDuration     float64               `json:"sla_paused_duration"`
	SlaStatus             domain.SlaStatus      `json:"sla_status"`
	EscalationEpisode     int                   `json:"escalation_episode"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// SlaReadout is the computed SLA view for a ticket.
type SlaReadout struct {
	PercentageUsed int              `json:"percentage_used"`
	Label          domain.SlaStatus `json:"label"`
	TimeRemaining  string           `json:"time_remaining"`
	Escalations    []EscalationItem `json:"escalations"`
}

// TicketFromDomain maps the domain ticket.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                    t.ID,
		ExternalKey:           t.ExternalKey,
		RequesterID:           t.RequesterID,
		AssigneeID:            t.AssigneeID,
		Title:                 t.Title,
		Status:                t.Status,
		Priority:              t.Priority,
		SlaResponseDeadline:   t.SlaResponseDeadline,
		SlaResolutionDeadline: t.SlaResolutionDeadline,
		SlaResponseTime:       t.SlaResponseTime,
		SlaResponseMet:        t.SlaResponseMet,
		SlaResolutionTime:     t.SlaResolutionTime,
		SlaResolutionMet:      t.SlaResolutionMet,
		SlaPausedAt:           t.SlaPausedAt,
		SlaPausedDuration:     t.SlaPausedDuration,
		SlaStatus:             t.SlaStatus,
		EscalationEpisode:     t.EscalationEpisode,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}
