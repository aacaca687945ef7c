package dto

import (
	"time"

	"github.com/revo-marketplace/waitlist/internal/domain"
	"github.com/revo-marketplace/waitlist/internal/validation"
)

// WaitlistSubmitRequest payload for POST /api/waitlist.
type WaitlistSubmitRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=100"`
	Email     string  `json:"email" validate:"required,email,mailbox,max=254"`
	Role      *string `json:"role" validate:"omitempty,oneof=farmer investor consumer partner other"`
	Consent   *bool   `json:"consent" validate:"required"`
	SessionID *string `json:"sessionId" validate:"omitempty,max=128"`
	Locale    *string `json:"locale" validate:"omitempty,max=16"`
}

// Normalize trims and lowercases fields in place before validation.
func (r *WaitlistSubmitRequest) Normalize() {
	r.Email = validation.NormalizeEmail(r.Email)
	r.Name = validation.NormalizeOptional(r.Name)
	r.Role = validation.NormalizeOptional(r.Role)
	r.SessionID = validation.NormalizeOptional(r.SessionID)
	r.Locale = validation.NormalizeOptional(r.Locale)
}

// HasConsent reports whether consent is exactly true.
func (r *WaitlistSubmitRequest) HasConsent() bool {
	return r.Consent != nil && *r.Consent
}

// RolePtr returns the validated role.
func (r *WaitlistSubmitRequest) RolePtr() *domain.Role {
	if r.Role == nil {
		return nil
	}
	role := domain.Role(*r.Role)
	return &role
}

// WaitlistResponse is the envelope for submission outcomes.
type WaitlistResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *WaitlistSubmitData `json:"data,omitempty"`
}

// WaitlistSubmitData identifies the stored submission.
type WaitlistSubmitData struct {
	ID    string       `json:"id"`
	Email string       `json:"email"`
	Role  *domain.Role `json:"role"`
}

// WaitlistAnalyticsResponse is returned by the admin GET.
type WaitlistAnalyticsResponse struct {
	TotalSignups  int64            `json:"totalSignups"`
	SignupsByRole map[string]int64 `json:"signupsByRole"`
	RecentSignups []RecentSignup   `json:"recentSignups"`
}

// RecentSignup exposes only email, role and creation time.
type RecentSignup struct {
	Email     string       `json:"email"`
	Role      *domain.Role `json:"role"`
	CreatedAt time.Time    `json:"createdAt"`
}

// FunnelEventRequest payload for POST /api/analytics/waitlist.
type FunnelEventRequest struct {
	Event     string  `json:"event" validate:"required,oneof=form_focus form_submit form_success form_error"`
	SessionID string  `json:"sessionId" validate:"omitempty,max=128"`
	Role      *string `json:"role" validate:"omitempty,oneof=farmer investor consumer partner other"`
}

// AnalyticsFromDomain maps aggregate counts to the wire shape.
func AnalyticsFromDomain(a *domain.WaitlistAnalytics) WaitlistAnalyticsResponse {
	recent := make([]RecentSignup, 0, len(a.RecentSignups))
	for _, r := range a.RecentSignups {
		recent = append(recent, RecentSignup{Email: r.Email, Role: r.Role, CreatedAt: r.CreatedAt})
	}
	byRole := a.SignupsByRole
	if byRole == nil {
		byRole = map[string]int64{}
	}
	return WaitlistAnalyticsResponse{
		TotalSignups:  a.TotalSignups,
		SignupsByRole: byRole,
		RecentSignups: recent,
	}
}
