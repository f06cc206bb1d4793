package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SlaPolicyRepository reads priority-keyed SLA configuration rows.
type SlaPolicyRepository interface {
	GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SlaPolicy, error)
	Upsert(ctx context.Context, policy *domain.SlaPolicy) error
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSlaPolicyRepository instantiates the repository.
func NewSlaPolicyRepository(pool *pgxpool.Pool) SlaPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

func (r *slaPolicyRepository) GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SlaPolicy, error) {
	const query = `
        SELECT id, priority, response_hours, resolution_hours, active_flag, created_at, updated_at
        FROM sla_policies WHERE priority=$1 AND active_flag=TRUE
        ORDER BY updated_at DESC LIMIT 1`
	var policy domain.SlaPolicy
	if err := r.pool.QueryRow(ctx, query, priority).Scan(
		&policy.ID,
		&policy.Priority,
		&policy.ResponseHours,
		&policy.ResolutionHours,
		&policy.Active,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SlaPolicy) error {
	const query = `
        INSERT INTO sla_policies (priority, response_hours, resolution_hours, active_flag)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (priority) DO UPDATE
        SET response_hours=EXCLUDED.response_hours,
            resolution_hours=EXCLUDED.resolution_hours,
            active_flag=EXCLUDED.active_flag,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.Priority,
		policy.ResponseHours,
		policy.ResolutionHours,
		policy.Active,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
}
