package domain

import "time"

// SlaPolicy is a stored per-priority SLA budget. When no active row exists
// for a priority the resolver falls back to built-in defaults.
type SlaPolicy struct {
	ID              string
	Priority        TicketPriority
	ResponseHours   float64
	ResolutionHours float64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
