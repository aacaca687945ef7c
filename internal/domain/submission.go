package domain

import "time"

// Role enumerates how a registrant describes themselves.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleInvestor Role = "investor"
	RoleConsumer Role = "consumer"
	RolePartner  Role = "partner"
	RoleOther    Role = "other"
)

// Roles lists every accepted role in display order.
var Roles = []Role{RoleFarmer, RoleInvestor, RoleConsumer, RolePartner, RoleOther}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Signup sources that are not UTM values.
const (
	SourceReferral = "referral"
	SourceDirect   = "direct"
)

// Locale is a supported email language.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleES Locale = "es"
)

// WaitlistSubmission is one registrant's persisted interest, keyed by email.
type WaitlistSubmission struct {
	ID             string
	Email          string
	Name           *string
	Role           *Role
	Consent        bool
	Source         string
	IP             string
	UserAgent      string
	Country        *string
	SessionID      *string
	Locale         Locale
	Unsubscribed   bool
	UnsubscribedAt *time.Time
	EmailSent      bool
	EmailSentAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoleValue returns the role or an empty string.
func (s *WaitlistSubmission) RoleValue() Role {
	if s.Role == nil {
		return ""
	}
	return *s.Role
}

// NameValue returns the name or an empty string.
func (s *WaitlistSubmission) NameValue() string {
	if s.Name == nil {
		return ""
	}
	return *s.Name
}
