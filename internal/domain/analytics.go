package domain

import "time"

// RoleUnspecified buckets signups that did not pick a role.
const RoleUnspecified = "unspecified"

// RecentSignup is the PII-minimal view of a signup shown to admins.
type RecentSignup struct {
	Email     string
	Role      *Role
	CreatedAt time.Time
}

// WaitlistAnalytics aggregates active (non-unsubscribed) signups.
type WaitlistAnalytics struct {
	TotalSignups  int64
	SignupsByRole map[string]int64
	RecentSignups []RecentSignup
}

// FunnelEvent is a client-side form interaction reported by the beacon.
type FunnelEvent string

const (
	FunnelFocus   FunnelEvent = "form_focus"
	FunnelSubmit  FunnelEvent = "form_submit"
	FunnelSuccess FunnelEvent = "form_success"
	FunnelError   FunnelEvent = "form_error"
)

// Valid reports whether e is a known funnel event.
func (e FunnelEvent) Valid() bool {
	switch e {
	case FunnelFocus, FunnelSubmit, FunnelSuccess, FunnelError:
		return true
	}
	return false
}
