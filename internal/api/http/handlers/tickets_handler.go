package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/service"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket submission and the assignment lifecycle.
type TicketsHandler struct {
	dispatch *service.DispatchService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(dispatch *service.DispatchService) *TicketsHandler {
	return &TicketsHandler{dispatch: dispatch}
}

// SubmitTicket POST /tickets.
func (h *TicketsHandler) SubmitTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.StoreID == nil {
		return apperrors.NewForbidden("reporter has no store")
	}
	var req dto.SubmitTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("description required", nil)
	}

	result, err := h.dispatch.SubmitTicket(c.UserContext(), service.SubmitTicketInput{
		Description:     req.Description,
		LocationInStore: req.LocationInStore,
		StoreID:         *principal.StoreID,
		ReporterUserID:  principal.UserID,
		AssetID:         req.AssetID,
	})
	if err != nil {
		return err
	}

	resp := dto.SubmitTicketResponse{
		Ticket:       dto.FromTicket(result.Ticket),
		Category:     result.Classification.Category,
		Subcategory:  result.Classification.Subcategory,
		Priority:     string(result.Classification.Priority),
		Confidence:   result.Classification.Confidence,
		Assigned:     result.Assigned,
		ProviderID:   result.ProviderID,
		RoutingScore: result.RoutingScore,
		Reasoning:    result.Reasoning,
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": resp})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.dispatch.GetTicketDetail(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicketDetail(detail)})
}

// ListStoreTickets GET /tickets.
func (h *TicketsHandler) ListStoreTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.StoreID == nil {
		return apperrors.NewForbidden("caller has no store")
	}
	limit, offset := parsePagination(c)
	tickets, err := h.dispatch.ListStoreTickets(c.UserContext(), *principal.StoreID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(tickets)})
}

// ListAssignedTickets GET /provider/tickets.
func (h *TicketsHandler) ListAssignedTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.ProviderID == nil {
		return apperrors.NewForbidden("caller is not a provider")
	}
	limit, offset := parsePagination(c)
	tickets, err := h.dispatch.ListProviderTickets(c.UserContext(), *principal.ProviderID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketList(tickets)})
}

// AcceptAssignment POST /tickets/:id/accept.
func (h *TicketsHandler) AcceptAssignment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.ProviderID == nil {
		return apperrors.NewForbidden("caller is not a provider")
	}
	var req dto.AcceptAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechID == "" || req.Phone == "" {
		return apperrors.NewValidationError("tech_id and phone required", nil)
	}
	if err := h.dispatch.AcceptAssignment(c.UserContext(), c.Params("id"), *principal.ProviderID, req.TechID, req.Phone); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.AssignmentStatusAccepted}})
}

// RejectAssignment POST /tickets/:id/reject.
func (h *TicketsHandler) RejectAssignment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.ProviderID == nil {
		return apperrors.NewForbidden("caller is not a provider")
	}
	var req dto.RejectAssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return apperrors.NewValidationError("reason required", nil)
	}
	if err := h.dispatch.RejectAssignment(c.UserContext(), c.Params("id"), *principal.ProviderID, req.Reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.AssignmentStatusRejected}})
}

// CompleteAssignment POST /tickets/:id/complete.
func (h *TicketsHandler) CompleteAssignment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if principal.ProviderID == nil {
		return apperrors.NewForbidden("caller is not a provider")
	}
	if err := h.dispatch.CompleteAssignment(c.UserContext(), c.Params("id"), *principal.ProviderID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.TicketStatusCompleted}})
}

// ApproveCompletion POST /tickets/:id/approve-completion.
func (h *TicketsHandler) ApproveCompletion(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.dispatch.ApproveCompletion(c.UserContext(), c.Params("id"), principal.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": domain.TicketStatusClosed}})
}

// AddRemark POST /tickets/:id/remarks.
func (h *TicketsHandler) AddRemark(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateRemarkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}
	remark, err := h.dispatch.AddRemark(c.UserContext(), c.Params("id"), principal.UserID, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.RemarkResponse{
		ID:        remark.ID,
		UserID:    remark.UserID,
		Text:      remark.Text,
		CreatedAt: remark.CreatedAt,
	}})
}

func ticketList(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return items
}

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	limit = 50
	offset = 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
