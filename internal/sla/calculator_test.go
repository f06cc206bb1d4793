package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
)

func TestDefaultPolicyBudgets(t *testing.T) {
	cases := []struct {
		priority        domain.TicketPriority
		responseHours   float64
		resolutionHours float64
	}{
		{domain.TicketPriorityCritical, 1, 4},
		{domain.TicketPriorityHigh, 2, 8},
		{domain.TicketPriorityMedium, 4, 24},
		{domain.TicketPriorityLow, 8, 48},
	}
	for _, tc := range cases {
		policy := DefaultPolicy(tc.priority)
		assert.Equal(t, tc.responseHours, policy.ResponseHours, string(tc.priority))
		assert.Equal(t, tc.resolutionHours, policy.ResolutionHours, string(tc.priority))
		assert.GreaterOrEqual(t, policy.ResolutionHours, policy.ResponseHours, string(tc.priority))
	}
}

func TestDefaultPolicyUnknownPriorityFallsBack(t *testing.T) {
	policy := DefaultPolicy(domain.TicketPriority("NONSENSE"))
	assert.Equal(t, DefaultPolicy(domain.TicketPriorityMedium), policy)
}

func TestDeadlines(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	response, resolution := Deadlines(createdAt, Policy{ResponseHours: 1, ResolutionHours: 4})
	assert.Equal(t, createdAt.Add(time.Hour), response)
	assert.Equal(t, createdAt.Add(4*time.Hour), resolution)
}

func TestActiveElapsedHours(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("no pauses", func(t *testing.T) {
		assert.InDelta(t, 3.0, ActiveElapsedHours(createdAt, createdAt.Add(3*time.Hour), 0, nil), 1e-9)
	})

	t.Run("completed pause subtracted", func(t *testing.T) {
		// Paused for exactly 2h of a 3h wall-clock window.
		assert.InDelta(t, 1.0, ActiveElapsedHours(createdAt, createdAt.Add(3*time.Hour), 2, nil), 1e-9)
	})

	t.Run("open pause window subtracted", func(t *testing.T) {
		pausedSince := createdAt.Add(2 * time.Hour)
		got := ActiveElapsedHours(createdAt, createdAt.Add(5*time.Hour), 1, &pausedSince)
		// 5h wall, 1h past pause, 3h open pause.
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("never negative", func(t *testing.T) {
		assert.Equal(t, 0.0, ActiveElapsedHours(createdAt, createdAt.Add(time.Hour), 5, nil))
	})
}

func TestPercentageUsed(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	responseDeadline := createdAt.Add(time.Hour)
	resolutionDeadline := createdAt.Add(4 * time.Hour)

	newTicket := func() *domain.Ticket {
		return &domain.Ticket{
			CreatedAt:             createdAt,
			SlaResponseDeadline:   &responseDeadline,
			SlaResolutionDeadline: &resolutionDeadline,
		}
	}

	t.Run("response phase", func(t *testing.T) {
		assert.Equal(t, 75, PercentageUsed(newTicket(), createdAt.Add(45*time.Minute)))
	})

	t.Run("switches to resolution budget once responded", func(t *testing.T) {
		ticket := newTicket()
		responseTime := 0.5
		ticket.SlaResponseTime = &responseTime
		// 2h of a 4h resolution budget, still anchored at creation.
		assert.Equal(t, 50, PercentageUsed(ticket, createdAt.Add(2*time.Hour)))
	})

	t.Run("clamped to 100", func(t *testing.T) {
		assert.Equal(t, 100, PercentageUsed(newTicket(), createdAt.Add(10*time.Hour)))
	})

	t.Run("pause lowers consumption", func(t *testing.T) {
		ticket := newTicket()
		responseTime := 0.5
		ticket.SlaResponseTime = &responseTime
		ticket.SlaPausedDuration = 2
		assert.Equal(t, 25, PercentageUsed(ticket, createdAt.Add(3*time.Hour)))
	})

	t.Run("no deadlines means no tracking", func(t *testing.T) {
		ticket := &domain.Ticket{CreatedAt: createdAt}
		assert.Equal(t, 0, PercentageUsed(ticket, createdAt.Add(time.Hour)))
	})
}

func TestStatusLabel(t *testing.T) {
	deadline := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.SlaStatusOnTrack, StatusLabel(deadline, deadline.Add(-2*time.Hour)))
	assert.Equal(t, domain.SlaStatusAtRisk, StatusLabel(deadline, deadline.Add(-30*time.Minute)))
	assert.Equal(t, domain.SlaStatusBreached, StatusLabel(deadline, deadline.Add(time.Minute)))
}

func TestLabelForUsesOpenPhaseDeadline(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	responseDeadline := createdAt.Add(time.Hour)
	resolutionDeadline := createdAt.Add(4 * time.Hour)
	ticket := &domain.Ticket{
		CreatedAt:             createdAt,
		SlaResponseDeadline:   &responseDeadline,
		SlaResolutionDeadline: &resolutionDeadline,
	}

	// Past the response deadline with no response recorded.
	require.Equal(t, domain.SlaStatusBreached, LabelFor(ticket, createdAt.Add(90*time.Minute)))

	// Same instant, but a response was captured: resolution deadline governs.
	responseTime := 0.8
	ticket.SlaResponseTime = &responseTime
	require.Equal(t, domain.SlaStatusOnTrack, LabelFor(ticket, createdAt.Add(90*time.Minute)))
}

func TestTimeRemaining(t *testing.T) {
	createdAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	responseDeadline := createdAt.Add(time.Hour)
	ticket := &domain.Ticket{CreatedAt: createdAt, SlaResponseDeadline: &responseDeadline}
	assert.Equal(t, 15*time.Minute, TimeRemaining(ticket, createdAt.Add(45*time.Minute)))
	assert.Equal(t, time.Duration(0), TimeRemaining(&domain.Ticket{}, createdAt))
}
