package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// casRetries bounds how often a transition is recomputed after losing an
// optimistic write race.
const casRetries = 3

// LifecycleService owns the ticket status state machine and every SLA
// bookkeeping side effect a transition carries. All mutations go through a
// version-guarded patch so two racing transitions cannot corrupt the
// pause-duration accounting.
type LifecycleService struct {
	tickets  repository.TicketRepository
	staff    repository.StaffRepository
	history  repository.TicketHistoryRepository
	policies *PolicyService

	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.SlaConfig
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	StaffRepo   repository.StaffRepository
	HistoryRepo repository.TicketHistoryRepository
	Policies    *PolicyService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Sla         config.SlaConfig
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterID string
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		staff:      deps.StaffRepo,
		history:    deps.HistoryRepo,
		policies:   deps.Policies,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		cfg:        deps.Sla,
	}
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusRejected},
	domain.TicketStatusInProgress: {domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusRejected},
	domain.TicketStatusPending:    {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusRejected},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusOpen},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
	domain.TicketStatusRejected:   {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CreateTicket persists a new ticket with its SLA deadlines stamped from the
// resolved priority policy. Deadlines are computed exactly once here.
func (s *LifecycleService) CreateTicket(ctx context.Context, input TicketCreateInput, now time.Time) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if input.RequesterID == "" || title == "" {
		return nil, apperrors.NewValidationError("requester_id and title required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	policy := s.policies.Resolve(ctx, priority)
	responseDeadline, resolutionDeadline := sla.Deadlines(now, policy)

	ticket := &domain.Ticket{
		ExternalKey:           generateTicketKey(),
		RequesterID:           input.RequesterID,
		Title:                 title,
		Description:           strings.TrimSpace(input.Description),
		Status:                domain.TicketStatusOpen,
		Priority:              priority,
		SlaResponseDeadline:   &responseDeadline,
		SlaResolutionDeadline: &resolutionDeadline,
		SlaStatus:             domain.SlaStatusOnTrack,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    domain.Actor{Type: domain.SubjectTypeUser, ID: input.RequesterID},
		Payload: events.TicketCreatedPayload{
			Priority:           ticket.Priority,
			Title:              ticket.Title,
			ResponseDeadline:   ticket.SlaResponseDeadline,
			ResolutionDeadline: ticket.SlaResolutionDeadline,
		},
	})
	return ticket, nil
}

// RequestStatusChange validates and applies a status transition with its SLA
// side effects as one atomic read-modify-write. On a version conflict the
// whole computation is retried against fresh state.
func (s *LifecycleService) RequestStatusChange(ctx context.Context, ticketID string, newStatus domain.TicketStatus, actor domain.Actor, reason string, now time.Time) (*domain.Ticket, error) {
	// Pending needs a reason before any side effect is computed.
	if newStatus == domain.TicketStatusPending && strings.TrimSpace(reason) == "" {
		return nil, apperrors.NewValidationError("pending reason required", nil)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}

		patch, err := s.computeTransitionPatch(ctx, ticket, newStatus, actor, now)
		if err != nil {
			return nil, err
		}

		if err := s.tickets.ApplyPatch(ctx, ticket.ID, ticket.Version, patch); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, apperrors.MapError(err)
		}

		s.recordStatusChange(ctx, actor, ticket, newStatus, reason)
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload: events.TicketStatusChangedPayload{
				OldStatus: ticket.Status,
				NewStatus: newStatus,
				Reason:    reason,
			},
		})
		if newStatus == domain.TicketStatusOpen {
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketReopened,
				TicketID: ticket.ID,
				Actor:    actor,
				Payload:  events.TicketReopenedPayload{Episode: ticket.EscalationEpisode + 1},
			})
		}

		updated, err := s.tickets.GetByID(ctx, ticket.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		return updated, nil
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently, retry", map[string]any{"ticket_id": ticketID})
}

// AssignTicket sets the assignee. Assignment alone does not record a first
// response; that happens when the ticket moves to IN_PROGRESS.
func (s *LifecycleService) AssignTicket(ctx context.Context, ticketID, staffID string, actor domain.Actor) (*domain.Ticket, error) {
	assignee, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": staffID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"staff_id": staffID})
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
		if !ticket.IsActive() {
			return nil, apperrors.NewConflict("ticket is not active", map[string]any{"status": ticket.Status})
		}

		patch := domain.TicketPatch{AssigneeID: &assignee.ID}
		if err := s.tickets.ApplyPatch(ctx, ticket.ID, ticket.Version, patch); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, apperrors.MapError(err)
		}

		s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeAssignee,
			map[string]any{"assignee_staff_id": ticket.AssigneeID},
			map[string]any{"assignee_staff_id": assignee.ID})
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload:  events.TicketAssignedPayload{AssigneeStaffID: &assignee.ID},
		})
		return s.tickets.GetByID(ctx, ticket.ID)
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently, retry", map[string]any{"ticket_id": ticketID})
}

// computeTransitionPatch builds the full side-effect patch for a transition.
// Only the reopen path touches storage, to verify staff privileges.
func (s *LifecycleService) computeTransitionPatch(ctx context.Context, ticket *domain.Ticket, newStatus domain.TicketStatus, actor domain.Actor, now time.Time) (domain.TicketPatch, error) {
	if !isValidTransition(ticket.Status, newStatus) {
		return domain.TicketPatch{}, apperrors.NewInvalidTransition(string(ticket.Status), string(newStatus))
	}

	patch := domain.TicketPatch{Status: &newStatus}

	// Close the open pause window first so later arithmetic sees the full
	// accumulated pause duration.
	pausedHours := ticket.SlaPausedDuration
	if ticket.Status == domain.TicketStatusPending && ticket.SlaPausedAt != nil && newStatus != domain.TicketStatusPending {
		pausedHours += now.Sub(*ticket.SlaPausedAt).Hours()
		patch.SlaPausedDuration = &pausedHours
		patch.ClearSlaPausedAt = true
	}

	switch newStatus {
	case domain.TicketStatusInProgress:
		// First passage only: once the response time is set it never changes,
		// even if the ticket regresses and advances again.
		if ticket.SlaResponseTime == nil && ticket.SlaResponseDeadline != nil {
			active := sla.ActiveElapsedHours(ticket.CreatedAt, now, pausedHours, nil)
			budget := ticket.SlaResponseDeadline.Sub(ticket.CreatedAt).Hours()
			met := active <= budget
			patch.SlaResponseTime = &active
			patch.SlaResponseMet = &met
		}

	case domain.TicketStatusPending:
		if ticket.SlaPausedAt == nil {
			pausedAt := now
			patch.SlaPausedAt = &pausedAt
		}

	case domain.TicketStatusResolved:
		resolvedAt := now
		patch.ResolvedAt = &resolvedAt
		if ticket.SlaResolutionTime == nil && ticket.SlaResolutionDeadline != nil {
			active := sla.ActiveElapsedHours(ticket.CreatedAt, now, pausedHours, nil)
			budget := ticket.SlaResolutionDeadline.Sub(ticket.CreatedAt).Hours()
			met := active <= budget
			patch.SlaResolutionTime = &active
			patch.SlaResolutionMet = &met
		}

	case domain.TicketStatusClosed:
		closedAt := now
		patch.ClosedAt = &closedAt

	case domain.TicketStatusOpen:
		// Reopen: requester-initiated (or admin/system), inside the window.
		if err := s.checkReopen(ctx, ticket, actor, now); err != nil {
			return domain.TicketPatch{}, err
		}
		patch.ClearAssignee = true
		episode := ticket.EscalationEpisode + 1
		patch.EscalationEpisode = &episode
		// Historical SLA times and deadlines stay untouched: they grade the
		// original episode.
	}

	// Label the ticket as it will look after this patch: a transition that
	// just recorded the first response grades against the resolution deadline,
	// not the response deadline it has already left behind.
	view := *ticket
	if patch.SlaResponseTime != nil {
		view.SlaResponseTime = patch.SlaResponseTime
	}
	label := sla.LabelFor(&view, now)
	patch.SlaStatus = &label
	return patch, nil
}

func (s *LifecycleService) checkReopen(ctx context.Context, ticket *domain.Ticket, actor domain.Actor, now time.Time) error {
	switch {
	case actor.IsSystem():
	case actor.Type == domain.SubjectTypeUser && actor.ID == ticket.RequesterID:
	case actor.Type == domain.SubjectTypeStaff:
		// Staff may override the requester rule only with the admin role.
		member, err := s.staff.GetByID(ctx, actor.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewForbidden("only the requester or an admin may reopen")
			}
			return apperrors.MapError(err)
		}
		if !member.Active || member.Role != domain.StaffRoleAdmin {
			return apperrors.NewForbidden("only the requester or an admin may reopen")
		}
	default:
		return apperrors.NewForbidden("only the requester or an admin may reopen")
	}
	anchor := ticket.ResolvedAt
	if ticket.Status == domain.TicketStatusClosed && ticket.ClosedAt != nil {
		anchor = ticket.ClosedAt
	}
	if anchor == nil {
		anchor = &ticket.UpdatedAt
	}
	if now.Sub(*anchor) > s.cfg.ReopenWindow() {
		return apperrors.NewConflict("reopen window elapsed",
			map[string]any{"window_days": s.cfg.ReopenWindowDays})
	}
	return nil
}

func (s *LifecycleService) recordStatusChange(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, newStatus domain.TicketStatus, reason string) {
	changeType := domain.ChangeTypeStatus
	if newStatus == domain.TicketStatusOpen {
		changeType = domain.ChangeTypeReopen
	}
	s.recordHistory(ctx, actor, ticket.ID, changeType,
		map[string]any{"status": ticket.Status},
		map[string]any{"status": newStatus, "reason": reason})
}

func (s *LifecycleService) recordHistory(ctx context.Context, actor domain.Actor, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	entry := &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: actor.Type,
		ChangedByID:   &actorID,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record ticket history",
			zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
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

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
