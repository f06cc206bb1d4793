package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// LifecycleHandler maps ticket lifecycle operations onto HTTP. The
// surrounding application authenticates callers; actor identity arrives in
// the payload.
type LifecycleHandler struct {
	lifecycle *service.LifecycleService
}

// NewLifecycleHandler constructs the handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle}
}

// CreateTicket POST /tickets.
func (h *LifecycleHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RequesterID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("requester_id and title required", nil)
	}
	ticket, err := h.lifecycle.CreateTicket(c.UserContext(), service.TicketCreateInput{
		RequesterID: req.RequesterID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}, time.Now())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// ChangeStatus POST /tickets/:id/status.
func (h *LifecycleHandler) ChangeStatus(c *fiber.Ctx) error {
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	actor, err := actorFromRequest(req.ActorType, req.ActorID)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.RequestStatusChange(c.UserContext(), c.Params("id"), req.NewStatus, actor, req.Reason, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *LifecycleHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StaffID == "" {
		return apperrors.NewValidationError("staff_id required", nil)
	}
	actor, err := actorFromRequest(domain.SubjectTypeStaff, req.ActorID)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.AssignTicket(c.UserContext(), c.Params("id"), req.StaffID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// Reopen POST /tickets/:id/reopen.
func (h *LifecycleHandler) Reopen(c *fiber.Ctx) error {
	var req dto.ReopenRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	actor, err := actorFromRequest(req.ActorType, req.ActorID)
	if err != nil {
		return err
	}
	ticket, err := h.lifecycle.RequestStatusChange(c.UserContext(), c.Params("id"), domain.TicketStatusOpen, actor, "reopened", time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

func actorFromRequest(subjectType domain.SubjectType, id string) (domain.Actor, error) {
	switch subjectType {
	case domain.SubjectTypeSystem:
		return domain.SystemActor(), nil
	case domain.SubjectTypeUser, domain.SubjectTypeStaff:
		if id == "" {
			return domain.Actor{}, apperrors.NewValidationError("actor_id required", nil)
		}
		return domain.Actor{Type: subjectType, ID: id}, nil
	default:
		return domain.Actor{}, apperrors.NewValidationError("unknown actor_type", nil)
	}
}
