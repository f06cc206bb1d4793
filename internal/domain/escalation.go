package domain

import "time"

// EscalationLevel identifies the graduated escalation step.
type EscalationLevel int

const (
	// EscalationLevelWarning fires when the SLA budget passes the warning
	// threshold (75% by default).
	EscalationLevelWarning EscalationLevel = 1
	// EscalationLevelCritical fires when the SLA budget passes the critical
	// threshold (90% by default).
	EscalationLevelCritical EscalationLevel = 2
)

// Escalation is an append-only ledger entry recording that a ticket crossed
// an SLA threshold. Created only by the escalation engine, at most once per
// (ticket, episode, level); only the acknowledgement fields ever change.
type Escalation struct {
	ID              string
	TicketID        string
	Episode         int
	Level           EscalationLevel
	EscalatedAt     time.Time
	NotifiedUserIDs []string
	PercentageUsed  int
	Acknowledged    bool
	AcknowledgedBy  *string
	AcknowledgedAt  *time.Time
}
