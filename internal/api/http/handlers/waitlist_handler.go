package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/revo-marketplace/waitlist/internal/api/dto"
	"github.com/revo-marketplace/waitlist/internal/locale"
	"github.com/revo-marketplace/waitlist/internal/service"
	"github.com/revo-marketplace/waitlist/internal/validation"
	apperrors "github.com/revo-marketplace/waitlist/pkg/util"
)

const maxUserAgentLen = 512

// WaitlistHandler serves the public submission endpoint and the admin summary.
type WaitlistHandler struct {
	service  *service.WaitlistService
	clientIP func(*fiber.Ctx) string
}

// NewWaitlistHandler constructs handler. clientIP extracts the rate-limit key.
func NewWaitlistHandler(waitlistService *service.WaitlistService, clientIP func(*fiber.Ctx) string) *WaitlistHandler {
	return &WaitlistHandler{service: waitlistService, clientIP: clientIP}
}

// Submit POST /api/waitlist.
//
// Order matters: the rate limit is charged before the body is even decoded,
// so malformed attempts count against the caller too.
func (h *WaitlistHandler) Submit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ip := h.clientIP(c)

	if err := h.service.AllowSubmission(ctx, ip); err != nil {
		return err
	}

	var req dto.WaitlistSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(service.MsgInvalidData)
	}
	req.Normalize()
	if err := validation.Struct(&req); err != nil {
		return apperrors.NewInvalidInput(service.MsgInvalidData, err)
	}
	if !req.HasConsent() {
		return apperrors.NewConsentRequired(service.MsgConsentRequired)
	}

	userAgent := c.Get(fiber.HeaderUserAgent)
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}

	res, err := h.service.Submit(ctx, service.SubmitInput{
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.RolePtr(),
		Consent:   true,
		Source:    service.ResolveSource(c.Query("utm_source"), c.Query("ref")),
		IP:        ip,
		UserAgent: userAgent,
		SessionID: req.SessionID,
		Locale:    locale.Resolve(req.Locale, c.Get(fiber.HeaderAcceptLanguage)),
	})
	if err != nil {
		return err
	}

	return c.JSON(dto.WaitlistResponse{
		Success: true,
		Message: res.Message(),
		Data: &dto.WaitlistSubmitData{
			ID:    res.Submission.ID,
			Email: res.Submission.Email,
			Role:  res.Submission.Role,
		},
	})
}

// Analytics GET /api/waitlist (admin).
func (h *WaitlistHandler) Analytics(c *fiber.Ctx) error {
	out, err := h.service.Analytics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.AnalyticsFromDomain(out))
}

// Unsubscribe GET /api/waitlist/unsubscribe.
func (h *WaitlistHandler) Unsubscribe(c *fiber.Ctx) error {
	_, err := h.service.Unsubscribe(c.UserContext(), c.Query("email"), c.Query("exp"), c.Query("token"))
	if err != nil {
		return err
	}
	return c.JSON(dto.WaitlistResponse{Success: true, Message: service.MsgUnsubscribed})
}
