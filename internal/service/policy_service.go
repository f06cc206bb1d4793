package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
)

// PolicyService resolves the SLA budget for a priority. A missing or broken
// configuration row is recovered locally via built-in defaults; Resolve
// never fails.
type PolicyService struct {
	policies repository.SlaPolicyRepository
	logger   *zap.Logger
}

// NewPolicyService constructs the resolver.
func NewPolicyService(policies repository.SlaPolicyRepository, logger *zap.Logger) *PolicyService {
	return &PolicyService{policies: policies, logger: logger}
}

// Resolve returns the active stored policy for the priority, falling back to
// the built-in table.
func (s *PolicyService) Resolve(ctx context.Context, priority domain.TicketPriority) sla.Policy {
	if s.policies != nil {
		stored, err := s.policies.GetActiveByPriority(ctx, priority)
		if err == nil && stored != nil {
			return sla.Policy{
				ResponseHours:   stored.ResponseHours,
				ResolutionHours: stored.ResolutionHours,
			}
		}
		if err != nil {
			s.logger.Debug("sla policy lookup fell back to defaults",
				zap.String("priority", string(priority)), zap.Error(err))
		}
	}
	return sla.DefaultPolicy(priority)
}
