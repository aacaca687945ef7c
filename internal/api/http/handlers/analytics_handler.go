package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/revo-marketplace/waitlist/internal/api/dto"
	"github.com/revo-marketplace/waitlist/internal/domain"
	"github.com/revo-marketplace/waitlist/internal/service"
	"github.com/revo-marketplace/waitlist/internal/validation"
	apperrors "github.com/revo-marketplace/waitlist/pkg/util"
)

// AnalyticsHandler ingests client funnel beacons.
type AnalyticsHandler struct {
	service *service.WaitlistService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(waitlistService *service.WaitlistService) *AnalyticsHandler {
	return &AnalyticsHandler{service: waitlistService}
}

// Track POST /api/analytics/waitlist.
func (h *AnalyticsHandler) Track(c *fiber.Ctx) error {
	var req dto.FunnelEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(service.MsgInvalidData)
	}
	if err := validation.Struct(&req); err != nil {
		return apperrors.NewInvalidInput(service.MsgInvalidData, err)
	}

	var role *domain.Role
	if req.Role != nil {
		r := domain.Role(*req.Role)
		role = &r
	}
	if err := h.service.RecordFunnelEvent(domain.FunnelEvent(req.Event), req.SessionID, role); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Funnel GET /api/waitlist/funnel (admin).
func (h *AnalyticsHandler) Funnel(c *fiber.Ctx) error {
	return c.JSON(h.service.Funnel())
}
