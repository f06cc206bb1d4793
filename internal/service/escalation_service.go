package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/notify"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// EscalationService periodically evaluates active tickets against their SLA
// budgets and appends graduated escalation records, at most once per
// (ticket, episode, level). It is the only writer of the escalation ledger.
type EscalationService struct {
	tickets     repository.TicketRepository
	escalations repository.EscalationRepository
	staff       repository.StaffRepository

	notifier   notify.Notifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.SlaConfig
}

// EscalationDependencies bundles collaborators for the escalation engine.
type EscalationDependencies struct {
	TicketRepo     repository.TicketRepository
	EscalationRepo repository.EscalationRepository
	StaffRepo      repository.StaffRepository
	Notifier       notify.Notifier
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Sla            config.SlaConfig
}

// TickSummary reports what a single escalation tick did.
type TickSummary struct {
	Scanned   int
	Escalated int
	Failures  int
}

// NewEscalationService constructs the engine.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		tickets:     deps.TicketRepo,
		escalations: deps.EscalationRepo,
		staff:       deps.StaffRepo,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		cfg:         deps.Sla,
	}
}

// RunTick evaluates every active ticket once. Idempotent: re-running with no
// time advance and no ticket changes appends nothing, because the per-level
// ledger existence check is the sole gate. A failure on one ticket is logged
// and the remaining tickets still get processed.
func (s *EscalationService) RunTick(ctx context.Context, now time.Time) (TickSummary, error) {
	tickets, err := s.tickets.ListActive(ctx)
	if err != nil {
		return TickSummary{}, apperrors.MapError(err)
	}

	summary := TickSummary{Scanned: len(tickets)}
	for i := range tickets {
		ticket := &tickets[i]
		escalated, err := s.evaluateTicket(ctx, ticket, now)
		if err != nil {
			summary.Failures++
			s.logger.Error("escalation evaluation failed; ticket will be retried next tick",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if escalated {
			summary.Escalated++
		}
	}

	s.metrics.RecordTick(summary.Scanned, summary.Failures)
	s.logger.Info("escalation tick complete",
		zap.Int("scanned", summary.Scanned),
		zap.Int("escalated", summary.Escalated),
		zap.Int("failures", summary.Failures))
	return summary, nil
}

func (s *EscalationService) evaluateTicket(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, error) {
	percentage := sla.PercentageUsed(ticket, now)

	existing, err := s.escalations.ListByTicketEpisode(ctx, ticket.ID, ticket.EscalationEpisode)
	if err != nil {
		return false, err
	}

	level, ok := s.decideLevel(percentage, existing)
	if !ok {
		s.refreshLabel(ctx, ticket, now)
		return false, nil
	}

	recipients, err := s.resolveRecipients(ctx, ticket, level)
	if err != nil {
		return false, err
	}

	escalation := &domain.Escalation{
		TicketID:        ticket.ID,
		Episode:         ticket.EscalationEpisode,
		Level:           level,
		EscalatedAt:     now,
		NotifiedUserIDs: recipients,
		PercentageUsed:  percentage,
	}
	if err := s.escalations.Insert(ctx, escalation); err != nil {
		return false, err
	}
	s.metrics.RecordEscalation(int(level))

	// Notification is at-least-attempted: the ledger write above stands even
	// if every delivery fails.
	s.dispatchNotifications(ctx, ticket, escalation, recipients, now)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: ticket.ID,
		Actor:    domain.SystemActor(),
		Payload: events.TicketEscalatedPayload{
			EscalationID:   escalation.ID,
			Level:          escalation.Level,
			PercentageUsed: escalation.PercentageUsed,
			Recipients:     recipients,
		},
	})

	s.refreshLabel(ctx, ticket, now)
	return true, nil
}

// decideLevel applies the graduated threshold rule, first match wins.
// A ticket that jumps straight past the warning threshold to the critical
// one escalates directly at level 2 and never produces a level-1 record for
// that episode: a warning is moot once already critical.
func (s *EscalationService) decideLevel(percentage int, existing []domain.Escalation) (domain.EscalationLevel, bool) {
	has := func(level domain.EscalationLevel) bool {
		for _, esc := range existing {
			if esc.Level == level {
				return true
			}
		}
		return false
	}

	switch {
	case percentage >= s.cfg.CriticalThresholdPercent && !has(domain.EscalationLevelCritical):
		return domain.EscalationLevelCritical, true
	case percentage >= s.cfg.WarningThresholdPercent && !has(domain.EscalationLevelWarning) && !has(domain.EscalationLevelCritical):
		return domain.EscalationLevelWarning, true
	default:
		return 0, false
	}
}

// resolveRecipients computes the deduplicated recipient set for a level:
// warning goes to the assignee plus admins, critical to admins plus agents.
func (s *EscalationService) resolveRecipients(ctx context.Context, ticket *domain.Ticket, level domain.EscalationLevel) ([]string, error) {
	seen := make(map[string]struct{})
	recipients := []string{}
	add := func(id string) {
		if _, dup := seen[id]; dup || id == "" {
			return
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	if level == domain.EscalationLevelWarning && ticket.AssigneeID != nil {
		add(*ticket.AssigneeID)
	}

	admins, err := s.staff.ListActiveByRole(ctx, domain.StaffRoleAdmin)
	if err != nil {
		return nil, err
	}
	for _, admin := range admins {
		add(admin.ID)
	}

	if level == domain.EscalationLevelCritical {
		agents, err := s.staff.ListActiveByRole(ctx, domain.StaffRoleAgent)
		if err != nil {
			return nil, err
		}
		for _, agent := range agents {
			add(agent.ID)
		}
	}
	return recipients, nil
}

func (s *EscalationService) dispatchNotifications(ctx context.Context, ticket *domain.Ticket, escalation *domain.Escalation, recipients []string, now time.Time) {
	if s.notifier == nil {
		return
	}
	deliveries := s.notifier.Notify(ctx, notify.Notification{
		Ticket:        ticket,
		Escalation:    escalation,
		RecipientIDs:  recipients,
		TimeRemaining: sla.TimeRemaining(ticket, now),
	})
	for _, delivery := range deliveries {
		if delivery.Err != nil {
			s.metrics.RecordNotifyFailure()
			s.logger.Warn("escalation notification failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("recipient", delivery.UserID),
				zap.Error(delivery.Err))
		}
	}
}

// refreshLabel updates the display-only SLA label. Best effort: a version
// conflict just means someone else wrote fresher state.
func (s *EscalationService) refreshLabel(ctx context.Context, ticket *domain.Ticket, now time.Time) {
	label := sla.LabelFor(ticket, now)
	if label == ticket.SlaStatus {
		return
	}
	patch := domain.TicketPatch{SlaStatus: &label}
	if err := s.tickets.ApplyPatch(ctx, ticket.ID, ticket.Version, patch); err != nil &&
		!errors.Is(err, repository.ErrVersionConflict) {
		s.logger.Warn("failed to refresh sla label",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// Acknowledge marks an escalation acknowledged exactly once, recording who
// and when. It never suppresses a later level and never un-escalates.
func (s *EscalationService) Acknowledge(ctx context.Context, escalationID, userID string, now time.Time) (*domain.Escalation, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id required", nil)
	}
	staff, err := s.staff.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	if !staff.Active {
		return nil, apperrors.NewForbidden("inactive staff cannot acknowledge")
	}

	updated, err := s.escalations.Acknowledge(ctx, escalationID, userID, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !updated {
		if _, err := s.escalations.GetByID(ctx, escalationID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("escalation", map[string]any{"escalation_id": escalationID})
			}
			return nil, apperrors.MapError(err)
		}
		return nil, apperrors.NewConflict("escalation already acknowledged",
			map[string]any{"escalation_id": escalationID})
	}

	escalation, err := s.escalations.GetByID(ctx, escalationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventEscalationAcknowledged,
		TicketID: escalation.TicketID,
		Actor:    domain.Actor{Type: domain.SubjectTypeStaff, ID: userID},
		Payload: events.EscalationAcknowledgedPayload{
			EscalationID:   escalation.ID,
			AcknowledgedBy: userID,
		},
	})
	return escalation, nil
}

// ListForTicket exposes the ledger read-only for the UI surface.
func (s *EscalationService) ListForTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	records, err := s.escalations.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

func (s *EscalationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
