package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/revo-marketplace/waitlist/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWaitlistJoined       EventType = "waitlist_joined"
	EventWaitlistReactivated  EventType = "waitlist_reactivated"
	EventWaitlistUnsubscribed EventType = "waitlist_unsubscribed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	SubmissionID string      `json:"submission_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// SignupPayload describes a join or rejoin. Only the email domain is carried so
// webhook consumers never receive the full address.
type SignupPayload struct {
	EmailDomain string  `json:"email_domain"`
	Role        string  `json:"role,omitempty"`
	Source      string  `json:"source"`
	Country     *string `json:"country,omitempty"`
	Locale      string  `json:"locale"`
	EmailSent   bool    `json:"email_sent"`
}

// UnsubscribedPayload describes an opt-out.
type UnsubscribedPayload struct {
	EmailDomain string `json:"email_domain"`
}

// NewEvent stamps an event with a fresh id and time.
func NewEvent(t EventType, submissionID string, payload interface{}) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         t,
		SubmissionID: submissionID,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}
}

// NewSignupPayload summarizes sub for a join or rejoin event.
func NewSignupPayload(sub *domain.WaitlistSubmission) SignupPayload {
	return SignupPayload{
		EmailDomain: EmailDomain(sub.Email),
		Role:        string(sub.RoleValue()),
		Source:      sub.Source,
		Country:     sub.Country,
		Locale:      string(sub.Locale),
		EmailSent:   sub.EmailSent,
	}
}

// EmailDomain returns the part of email after the last '@'.
func EmailDomain(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
