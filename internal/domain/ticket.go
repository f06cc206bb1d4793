package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusRejected   TicketStatus = "REJECTED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// SlaStatus is the coarse display label refreshed by the background tick.
// It is never consulted for escalation decisions.
type SlaStatus string

const (
	SlaStatusOnTrack  SlaStatus = "ON_TRACK"
	SlaStatusAtRisk   SlaStatus = "AT_RISK"
	SlaStatusBreached SlaStatus = "BREACHED"
)

// Ticket is the aggregate for support requests, carrying the SLA bookkeeping
// block alongside the usual fields. Deadlines are stamped once at creation
// and never recomputed; response/resolution times are first-passage values.
type Ticket struct {
	ID          string
	ExternalKey string
	RequesterID string
	AssigneeID  *string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority

	SlaResponseDeadline   *time.Time
	SlaResolutionDeadline *time.Time
	SlaResponseTime       *float64
	SlaResponseMet        *bool
	SlaResolutionTime     *float64
	SlaResolutionMet      *bool
	SlaPausedAt           *time.Time
	SlaPausedDuration     float64
	SlaStatus             SlaStatus

	// EscalationEpisode increments on reopen so the per-level escalation
	// gate applies to the current episode only.
	EscalationEpisode int

	// Version guards optimistic read-modify-write updates.
	Version int

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
	ClosedAt   *time.Time
}

// IsActive reports whether the ticket is still scanned by the escalation tick.
func (t *Ticket) IsActive() bool {
	switch t.Status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPending:
		return true
	default:
		return false
	}
}

// TicketPatch describes a partial ticket update applied in a single
// version-guarded write. Pointer fields are set when non-nil; Clear flags
// null out the corresponding optional column.
type TicketPatch struct {
	Status        *TicketStatus
	AssigneeID    *string
	ClearAssignee bool

	SlaResponseTime   *float64
	SlaResponseMet    *bool
	SlaResolutionTime *float64
	SlaResolutionMet  *bool
	SlaPausedAt       *time.Time
	ClearSlaPausedAt  bool
	SlaPausedDuration *float64
	SlaStatus         *SlaStatus

	EscalationEpisode *int

	ResolvedAt *time.Time
	ClosedAt   *time.Time
}

// IsEmpty reports whether applying the patch would change nothing.
func (p TicketPatch) IsEmpty() bool {
	return p.Status == nil && p.AssigneeID == nil && !p.ClearAssignee &&
		p.SlaResponseTime == nil && p.SlaResponseMet == nil &&
		p.SlaResolutionTime == nil && p.SlaResolutionMet == nil &&
		p.SlaPausedAt == nil && !p.ClearSlaPausedAt &&
		p.SlaPausedDuration == nil && p.SlaStatus == nil &&
		p.EscalationEpisode == nil && p.ResolvedAt == nil && p.ClosedAt == nil
}
