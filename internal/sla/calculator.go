package sla

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// atRiskWindow is how close to a deadline a ticket may get before the
// display label flips to AT_RISK.
const atRiskWindow = time.Hour

// Deadlines computes the absolute response and resolution deadlines for a
// ticket created at createdAt. Offsets are plain wall-clock hours;
// business-hours calendars are a known simplification left out here.
func Deadlines(createdAt time.Time, policy Policy) (response, resolution time.Time) {
	response = createdAt.Add(hoursToDuration(policy.ResponseHours))
	resolution = createdAt.Add(hoursToDuration(policy.ResolutionHours))
	return response, resolution
}

// ActiveElapsedHours returns the SLA-counted hours between createdAt and now:
// wall time minus completed pause windows minus the currently open pause
// window, if any.
func ActiveElapsedHours(createdAt, now time.Time, pausedHours float64, pausedSince *time.Time) float64 {
	elapsed := now.Sub(createdAt).Hours()
	pauseTotal := pausedHours
	if pausedSince != nil {
		pauseTotal += now.Sub(*pausedSince).Hours()
	}
	active := elapsed - pauseTotal
	if active < 0 {
		return 0
	}
	return active
}

// PercentageUsed returns how much of the ticket's open SLA budget is
// consumed, as an integer clamped to [0, 100]. The response budget applies
// until a first response is recorded, then the resolution budget takes over.
// Both budgets are anchored at creation: a ticket that is slow to get picked
// up permanently consumes part of its resolution budget. That coupling is a
// deliberate policy carried over from the stored deadlines, which are never
// recomputed.
func PercentageUsed(t *domain.Ticket, now time.Time) int {
	deadline := openPhaseDeadline(t)
	if deadline == nil {
		return 0
	}
	budget := deadline.Sub(t.CreatedAt).Hours()
	if budget <= 0 {
		return 0
	}
	active := ActiveElapsedHours(t.CreatedAt, now, t.SlaPausedDuration, t.SlaPausedAt)
	pct := int(active / budget * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// StatusLabel classifies a deadline for display: BREACHED once past,
// AT_RISK inside the final hour, ON_TRACK otherwise.
func StatusLabel(deadline, now time.Time) domain.SlaStatus {
	if now.After(deadline) {
		return domain.SlaStatusBreached
	}
	if deadline.Sub(now) < atRiskWindow {
		return domain.SlaStatusAtRisk
	}
	return domain.SlaStatusOnTrack
}

// LabelFor computes the display label against the ticket's open-phase
// deadline. Tickets without SLA tracking stay ON_TRACK.
func LabelFor(t *domain.Ticket, now time.Time) domain.SlaStatus {
	deadline := openPhaseDeadline(t)
	if deadline == nil {
		return domain.SlaStatusOnTrack
	}
	return StatusLabel(*deadline, now)
}

// TimeRemaining returns how long until the open-phase deadline. Negative
// once breached, zero when no SLA is tracked.
func TimeRemaining(t *domain.Ticket, now time.Time) time.Duration {
	deadline := openPhaseDeadline(t)
	if deadline == nil {
		return 0
	}
	return deadline.Sub(now)
}

func openPhaseDeadline(t *domain.Ticket) *time.Time {
	if t.SlaResponseTime == nil {
		return t.SlaResponseDeadline
	}
	return t.SlaResolutionDeadline
}

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
