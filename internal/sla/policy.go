package sla

import "github.com/spec-kit/sla-engine/internal/domain"

// Policy is a resolved per-priority SLA budget in hours.
type Policy struct {
	ResponseHours   float64
	ResolutionHours float64
}

var defaultPolicies = map[domain.TicketPriority]Policy{
	domain.TicketPriorityCritical: {ResponseHours: 1, ResolutionHours: 4},
	domain.TicketPriorityHigh:     {ResponseHours: 2, ResolutionHours: 8},
	domain.TicketPriorityMedium:   {ResponseHours: 4, ResolutionHours: 24},
	domain.TicketPriorityLow:      {ResponseHours: 8, ResolutionHours: 48},
}

// DefaultPolicy returns the built-in budget for a priority. Unknown
// priorities get the Medium budget so the lookup never fails.
func DefaultPolicy(priority domain.TicketPriority) Policy {
	if p, ok := defaultPolicies[priority]; ok {
		return p
	}
	return defaultPolicies[domain.TicketPriorityMedium]
}
