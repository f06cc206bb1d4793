package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EscalationRepository is the append-only escalation ledger. It holds no
// business logic; the escalation engine owns all decisions.
type EscalationRepository interface {
	Insert(ctx context.Context, escalation *domain.Escalation) error
	GetByID(ctx context.Context, id string) (*domain.Escalation, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
	ListByTicketEpisode(ctx context.Context, ticketID string, episode int) ([]domain.Escalation, error)
	Acknowledge(ctx context.Context, id, userID string, now time.Time) (bool, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates the repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) Insert(ctx context.Context, escalation *domain.Escalation) error {
	const query = `
        INSERT INTO escalations (ticket_id, episode, level, escalated_at, notified_user_ids, percentage_used)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		escalation.TicketID,
		escalation.Episode,
		escalation.Level,
		escalation.EscalatedAt,
		escalation.NotifiedUserIDs,
		escalation.PercentageUsed,
	).Scan(&escalation.ID)
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, episode, level, escalated_at, notified_user_ids, percentage_used,
               acknowledged, acknowledged_by, acknowledged_at
        FROM escalations WHERE id=$1`
	var esc domain.Escalation
	if err := r.pool.QueryRow(ctx, query, id).Scan(escalationScanTargets(&esc)...); err != nil {
		return nil, err
	}
	return &esc, nil
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, episode, level, escalated_at, notified_user_ids, percentage_used,
               acknowledged, acknowledged_by, acknowledged_at
        FROM escalations WHERE ticket_id=$1 ORDER BY escalated_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEscalations(rows)
}

func (r *escalationRepository) ListByTicketEpisode(ctx context.Context, ticketID string, episode int) ([]domain.Escalation, error) {
	const query = `
        SELECT id, ticket_id, episode, level, escalated_at, notified_user_ids, percentage_used,
               acknowledged, acknowledged_by, acknowledged_at
        FROM escalations WHERE ticket_id=$1 AND episode=$2 ORDER BY escalated_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID, episode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEscalations(rows)
}

// Acknowledge marks the record acknowledged once. Returns false when the
// record was already acknowledged (or does not exist).
func (r *escalationRepository) Acknowledge(ctx context.Context, id, userID string, now time.Time) (bool, error) {
	const query = `
        UPDATE escalations SET acknowledged=TRUE, acknowledged_by=$2, acknowledged_at=$3
        WHERE id=$1 AND acknowledged=FALSE`
	cmd, err := r.pool.Exec(ctx, query, id, userID, now)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func scanEscalations(rows pgx.Rows) ([]domain.Escalation, error) {
	var result []domain.Escalation
	for rows.Next() {
		var esc domain.Escalation
		if err := rows.Scan(escalationScanTargets(&esc)...); err != nil {
			return nil, err
		}
		result = append(result, esc)
	}
	return result, rows.Err()
}

func escalationScanTargets(e *domain.Escalation) []any {
	return []any{
		&e.ID,
		&e.TicketID,
		&e.Episode,
		&e.Level,
		&e.EscalatedAt,
		&e.NotifiedUserIDs,
		&e.PercentageUsed,
		&e.Acknowledged,
		&e.AcknowledgedBy,
		&e.AcknowledgedAt,
	}
}
