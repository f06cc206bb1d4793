package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/sla"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// EscalationHandler maps escalation operations onto HTTP.
type EscalationHandler struct {
	engine  *service.EscalationService
	tickets repository.TicketRepository
}

// NewEscalationHandler constructs the handler.
func NewEscalationHandler(engine *service.EscalationService, tickets repository.TicketRepository) *EscalationHandler {
	return &EscalationHandler{engine: engine, tickets: tickets}
}

// RunTick POST /escalations/tick runs an on-demand evaluation. Safe to call
// any number of times; the ledger gate prevents duplicates.
func (h *EscalationHandler) RunTick(c *fiber.Ctx) error {
	summary, err := h.engine.RunTick(c.UserContext(), time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TickResponse{
		Scanned:   summary.Scanned,
		Escalated: summary.Escalated,
		Failures:  summary.Failures,
	}})
}

// Acknowledge POST /escalations/:id/acknowledge.
func (h *EscalationHandler) Acknowledge(c *fiber.Ctx) error {
	var req dto.AcknowledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	escalation, err := h.engine.Acknowledge(c.UserContext(), c.Params("id"), req.UserID, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EscalationFromDomain(escalation)})
}

// TicketSla GET /tickets/:id/sla returns the computed SLA readout plus the
// escalation ledger for the ticket.
func (h *EscalationHandler) TicketSla(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	ticket, err := h.tickets.GetByID(c.UserContext(), ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	records, err := h.engine.ListForTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}

	now := time.Now()
	items := make([]dto.EscalationItem, 0, len(records))
	for i := range records {
		items = append(items, dto.EscalationFromDomain(&records[i]))
	}
	return c.JSON(fiber.Map{"data": dto.SlaReadout{
		PercentageUsed: sla.PercentageUsed(ticket, now),
		Label:          sla.LabelFor(ticket, now),
		TimeRemaining:  sla.TimeRemaining(ticket, now).String(),
		Escalations:    items,
	}})
}
