package waitlistclient

import (
	"context"
	"errors"
	"sync"

	"github.com/revo-marketplace/waitlist/internal/api/dto"
	"github.com/revo-marketplace/waitlist/internal/validation"
)

// MsgConsentRequired is shown next to the consent checkbox.
const MsgConsentRequired = "Please agree to receive updates to join the waitlist"

// Form holds the state of one waitlist form: inputs, per-field errors, the
// global notice and toast, and the post-success view.
type Form struct {
	client  *Client
	tracker *Tracker

	mu             sync.Mutex
	Values         FormValues
	FieldErrors    map[string]string
	Notice         string
	Toast          string
	Submitting     bool
	Submitted      bool
	SubmittedEmail string
	Share          ShareLinks
}

// NewForm binds a form to client. tracker may be nil.
func NewForm(client *Client, tracker *Tracker) *Form {
	f := &Form{client: client, tracker: tracker, FieldErrors: map[string]string{}}
	if tracker != nil {
		f.Values.SessionID = tracker.SessionID()
	}
	return f
}

// Focus records the first interaction.
func (f *Form) Focus() {
	if f.tracker != nil {
		f.tracker.Focus()
	}
}

// Validate checks the inputs with the server's rules and returns field errors.
func (f *Form) Validate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return validateValues(f.Values)
}

func validateValues(v FormValues) map[string]string {
	consent := v.Consent
	req := dto.WaitlistSubmitRequest{
		Name:      optional(v.Name),
		Email:     v.Email,
		Role:      optional(v.Role),
		Consent:   &consent,
		SessionID: optional(v.SessionID),
		Locale:    optional(v.Locale),
	}
	req.Normalize()

	out := map[string]string{}
	if err := validation.Struct(req); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if _, seen := out[fe.Field]; !seen {
					out[fe.Field] = fe.Message
				}
			}
		} else {
			out["form"] = err.Error()
		}
	}
	if !v.Consent {
		out["consent"] = MsgConsentRequired
	}
	return out
}

// Submit validates locally and, when clean, posts the form. A second call
// while one is in flight returns OutcomeInvalid without sending.
func (f *Form) Submit(ctx context.Context) Outcome {
	f.mu.Lock()
	if f.Submitting {
		f.mu.Unlock()
		return Outcome{Kind: OutcomeInvalid}
	}
	f.Notice, f.Toast = "", ""
	fieldErrs := validateValues(f.Values)
	f.FieldErrors = fieldErrs
	if len(fieldErrs) > 0 {
		f.mu.Unlock()
		return Outcome{Kind: OutcomeInvalid, FieldErrors: fieldErrs}
	}
	f.Submitting = true
	values := f.Values
	f.mu.Unlock()

	if f.tracker != nil {
		f.tracker.Track(EventSubmit, values.Role)
	}
	out := f.client.Submit(ctx, values)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submitting = false
	switch out.Kind {
	case OutcomeSuccess:
		f.Submitted = true
		f.SubmittedEmail = out.Email
		f.Share = out.Share
		f.Values = FormValues{SessionID: values.SessionID, Locale: values.Locale}
	case OutcomeFieldError:
		f.FieldErrors = out.FieldErrors
	case OutcomeRateLimited:
		f.Notice = out.Message
	case OutcomeFailure:
		f.Toast = out.Message
	}
	return out
}

// Reset returns a submitted form to its empty input state.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Values = FormValues{SessionID: f.Values.SessionID, Locale: f.Values.Locale}
	f.FieldErrors = map[string]string{}
	f.Notice, f.Toast = "", ""
	f.Submitted = false
	f.SubmittedEmail = ""
	f.Share = ShareLinks{}
}
