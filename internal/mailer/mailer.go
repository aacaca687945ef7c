// Package mailer renders and sends the waitlist confirmation email.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/revo-marketplace/waitlist/internal/auth"
	"github.com/revo-marketplace/waitlist/internal/domain"
)

// DeliveryResult is the non-fatal outcome of a confirmation send.
type DeliveryResult struct {
	Sent   bool
	SentAt time.Time
	Locale domain.Locale
	Err    error
}

// Mailer sends confirmation emails with a signed unsubscribe link.
type Mailer struct {
	transport Transport
	signer    *auth.UnsubscribeSigner
	baseURL   string
	now       func() time.Time
}

// New builds a Mailer.
func New(transport Transport, signer *auth.UnsubscribeSigner, baseURL string) *Mailer {
	return &Mailer{transport: transport, signer: signer, baseURL: baseURL, now: time.Now}
}

// SendConfirmation renders and sends the welcome email for sub in loc.
func (m *Mailer) SendConfirmation(ctx context.Context, sub *domain.WaitlistSubmission, loc domain.Locale) (res DeliveryResult) {
	res.Locale = loc
	defer func() {
		if r := recover(); r != nil {
			res = DeliveryResult{Locale: loc, Err: fmt.Errorf("send confirmation panicked: %v", r)}
		}
	}()

	link, err := m.signer.BuildLink(m.baseURL, sub.Email)
	if err != nil {
		res.Err = fmt.Errorf("build unsubscribe link: %w", err)
		return res
	}

	msg, err := Render(TemplateData{
		Email:          sub.Email,
		Name:           sub.NameValue(),
		Role:           sub.RoleValue(),
		Locale:         loc,
		UnsubscribeURL: link.URL,
		ExpiresAt:      link.ExpiresAt,
	})
	if err != nil {
		res.Err = fmt.Errorf("render confirmation: %w", err)
		return res
	}

	if err := m.transport.Send(ctx, msg); err != nil {
		res.Err = err
		return res
	}
	res.Sent = true
	res.SentAt = m.now()
	return res
}
