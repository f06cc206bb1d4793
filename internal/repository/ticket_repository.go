package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ErrVersionConflict signals that a version-guarded update lost the race.
// Callers must re-read the ticket and recompute their patch.
var ErrVersionConflict = errors.New("ticket version conflict")

const ticketColumns = `id, external_key, requester_user_id, assignee_staff_id, title, description,
               status, priority,
               sla_response_deadline, sla_resolution_deadline,
               sla_response_time, sla_response_met, sla_resolution_time, sla_resolution_met,
               sla_paused_at, sla_paused_duration, sla_status,
               escalation_episode, version,
               created_at, updated_at, resolved_at, closed_at`

// TicketRepository encapsulates ticket persistence. ApplyPatch is the only
// mutation path for SLA bookkeeping fields.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	ListActive(ctx context.Context) ([]domain.Ticket, error)
	ApplyPatch(ctx context.Context, id string, expectedVersion int, patch domain.TicketPatch) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_user_id, assignee_staff_id, title, description,
            status, priority, sla_response_deadline, sla_resolution_deadline, sla_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, escalation_episode, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.SlaResponseDeadline,
		ticket.SlaResolutionDeadline,
		ticket.SlaStatus,
	).Scan(&ticket.ID, &ticket.EscalationEpisode, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE external_key=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, key)
}

// ListActive returns every ticket the escalation tick must evaluate.
func (r *ticketRepository) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets
             WHERE status IN ($1,$2,$3) ORDER BY created_at ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query,
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ApplyPatch writes the patch in a single statement conditioned on the
// ticket's last-known version. Zero rows affected means either the ticket is
// gone or another writer got there first; the caller distinguishes by
// re-reading.
func (r *ticketRepository) ApplyPatch(ctx context.Context, id string, expectedVersion int, patch domain.TicketPatch) error {
	sets := []string{"updated_at=NOW()", "version=version+1"}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.ClearAssignee {
		sets = append(sets, "assignee_staff_id=NULL")
	} else if patch.AssigneeID != nil {
		add("assignee_staff_id", *patch.AssigneeID)
	}
	if patch.SlaResponseTime != nil {
		add("sla_response_time", *patch.SlaResponseTime)
	}
	if patch.SlaResponseMet != nil {
		add("sla_response_met", *patch.SlaResponseMet)
	}
	if patch.SlaResolutionTime != nil {
		add("sla_resolution_time", *patch.SlaResolutionTime)
	}
	if patch.SlaResolutionMet != nil {
		add("sla_resolution_met", *patch.SlaResolutionMet)
	}
	if patch.ClearSlaPausedAt {
		sets = append(sets, "sla_paused_at=NULL")
	} else if patch.SlaPausedAt != nil {
		add("sla_paused_at", *patch.SlaPausedAt)
	}
	if patch.SlaPausedDuration != nil {
		add("sla_paused_duration", *patch.SlaPausedDuration)
	}
	if patch.SlaStatus != nil {
		add("sla_status", *patch.SlaStatus)
	}
	if patch.EscalationEpisode != nil {
		add("escalation_episode", *patch.EscalationEpisode)
	}
	if patch.ResolvedAt != nil {
		add("resolved_at", *patch.ResolvedAt)
	}
	if patch.ClosedAt != nil {
		add("closed_at", *patch.ClosedAt)
	}

	args = append(args, id)
	idPlaceholder := len(args)
	args = append(args, expectedVersion)
	versionPlaceholder := len(args)

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d AND version=$%d`,
		strings.Join(sets, ", "), idPlaceholder, versionPlaceholder)

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(ticketScanTargets(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketScanTargets(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func ticketScanTargets(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.ExternalKey,
		&t.RequesterID,
		&t.AssigneeID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.SlaResponseDeadline,
		&t.SlaResolutionDeadline,
		&t.SlaResponseTime,
		&t.SlaResponseMet,
		&t.SlaResolutionTime,
		&t.SlaResolutionMet,
		&t.SlaPausedAt,
		&t.SlaPausedDuration,
		&t.SlaStatus,
		&t.EscalationEpisode,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ResolvedAt,
		&t.ClosedAt,
	}
}
