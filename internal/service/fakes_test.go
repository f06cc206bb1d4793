package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/notify"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// In-memory repository fakes mirroring the pgx implementations' semantics,
// including version-guarded patches.

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket

	// conflictsBeforeSuccess makes the next N ApplyPatch calls lose the race.
	conflictsBeforeSuccess int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) put(t *domain.Ticket) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	copied := *t
	r.tickets[t.ID] = &copied
	return t
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.put(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ExternalKey == key {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.IsActive() {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) ApplyPatch(ctx context.Context, id string, expectedVersion int, patch domain.TicketPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsBeforeSuccess > 0 {
		r.conflictsBeforeSuccess--
		return repository.ErrVersionConflict
	}
	ticket, ok := r.tickets[id]
	if !ok || ticket.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.ClearAssignee {
		ticket.AssigneeID = nil
	} else if patch.AssigneeID != nil {
		ticket.AssigneeID = patch.AssigneeID
	}
	if patch.SlaResponseTime != nil {
		ticket.SlaResponseTime = patch.SlaResponseTime
	}
	if patch.SlaResponseMet != nil {
		ticket.SlaResponseMet = patch.SlaResponseMet
	}
	if patch.SlaResolutionTime != nil {
		ticket.SlaResolutionTime = patch.SlaResolutionTime
	}
	if patch.SlaResolutionMet != nil {
		ticket.SlaResolutionMet = patch.SlaResolutionMet
	}
	if patch.ClearSlaPausedAt {
		ticket.SlaPausedAt = nil
	} else if patch.SlaPausedAt != nil {
		ticket.SlaPausedAt = patch.SlaPausedAt
	}
	if patch.SlaPausedDuration != nil {
		ticket.SlaPausedDuration = *patch.SlaPausedDuration
	}
	if patch.SlaStatus != nil {
		ticket.SlaStatus = *patch.SlaStatus
	}
	if patch.EscalationEpisode != nil {
		ticket.EscalationEpisode = *patch.EscalationEpisode
	}
	if patch.ResolvedAt != nil {
		ticket.ResolvedAt = patch.ResolvedAt
	}
	if patch.ClosedAt != nil {
		ticket.ClosedAt = patch.ClosedAt
	}
	ticket.Version++
	ticket.UpdatedAt = time.Now()
	return nil
}

type fakeEscalationRepo struct {
	mu      sync.Mutex
	records []domain.Escalation

	insertErr error
	// failTicketID makes ListByTicketEpisode fail for one ticket, to test
	// per-ticket isolation during a tick.
	failTicketID string
}

func newFakeEscalationRepo() *fakeEscalationRepo {
	return &fakeEscalationRepo{}
}

func (r *fakeEscalationRepo) Insert(ctx context.Context, escalation *domain.Escalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, existing := range r.records {
		if existing.TicketID == escalation.TicketID &&
			existing.Episode == escalation.Episode &&
			existing.Level == escalation.Level {
			return errors.New("duplicate escalation for ticket/episode/level")
		}
	}
	escalation.ID = uuid.NewString()
	r.records = append(r.records, *escalation)
	return nil
}

func (r *fakeEscalationRepo) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			copied := r.records[i]
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeEscalationRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Escalation
	for _, esc := range r.records {
		if esc.TicketID == ticketID {
			result = append(result, esc)
		}
	}
	return result, nil
}

func (r *fakeEscalationRepo) ListByTicketEpisode(ctx context.Context, ticketID string, episode int) ([]domain.Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTicketID == ticketID {
		return nil, errors.New("ledger unavailable")
	}
	var result []domain.Escalation
	for _, esc := range r.records {
		if esc.TicketID == ticketID && esc.Episode == episode {
			result = append(result, esc)
		}
	}
	return result, nil
}

func (r *fakeEscalationRepo) Acknowledge(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id && !r.records[i].Acknowledged {
			r.records[i].Acknowledged = true
			r.records[i].AcknowledgedBy = &userID
			ackAt := now
			r.records[i].AcknowledgedAt = &ackAt
			return true, nil
		}
	}
	return false, nil
}

type fakeStaffRepo struct {
	mu    sync.Mutex
	staff map[string]*domain.StaffMember
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{staff: make(map[string]*domain.StaffMember)}
}

func (r *fakeStaffRepo) add(id string, role domain.StaffRole, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[id] = &domain.StaffMember{ID: id, Name: id, Role: role, Active: active}
}

func (r *fakeStaffRepo) Create(ctx context.Context, staff *domain.StaffMember) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *staff
	r.staff[staff.ID] = &copied
	return nil
}

func (r *fakeStaffRepo) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staff, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *staff
	return &copied, nil
}

func (r *fakeStaffRepo) ListActiveByRole(ctx context.Context, role domain.StaffRole) ([]domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.staff))
	for id := range r.staff {
		ids = append(ids, id)
	}
	// deterministic order
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	var result []domain.StaffMember
	for _, id := range ids {
		member := r.staff[id]
		if member.Role == role && member.Active {
			result = append(result, *member)
		}
	}
	return result, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []notify.Notification
	deliveryErr   error
}

func (n *fakeNotifier) Notify(ctx context.Context, notification notify.Notification) []notify.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	deliveries := make([]notify.Delivery, 0, len(notification.RecipientIDs))
	for _, id := range notification.RecipientIDs {
		deliveries = append(deliveries, notify.Delivery{UserID: id, Err: n.deliveryErr})
	}
	return deliveries
}
