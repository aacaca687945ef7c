// Package waitlistclient submits waitlist signups and maps server responses to
// form outcomes. It is the Go counterpart of the landing-page form.
package waitlistclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/revo-marketplace/waitlist/internal/api/dto"
)

// Fallback copy shown when the server gives nothing better.
const (
	MsgGeneric           = "Something went wrong. Please try again."
	MsgTooManyAttempts   = "Too many attempts. Please wait a while before trying again."
	MsgAlreadyRegistered = "This email is already registered on our waitlist"
)

const defaultTimeout = 10 * time.Second

// OutcomeKind classifies a submission result for the form.
type OutcomeKind int

const (
	// OutcomeInvalid means client-side validation failed; nothing was sent.
	OutcomeInvalid OutcomeKind = iota
	OutcomeSuccess
	// OutcomeFieldError attaches a message to one field (duplicate email).
	OutcomeFieldError
	// OutcomeRateLimited shows a global notice.
	OutcomeRateLimited
	// OutcomeFailure shows a global toast.
	OutcomeFailure
)

// Outcome is what the form renders after a submit.
type Outcome struct {
	Kind        OutcomeKind
	Message     string
	Email       string
	FieldErrors map[string]string
	Share       ShareLinks
	Err         error
}

// ShareLinks point at social share intents for the landing page.
type ShareLinks struct {
	Twitter  string
	LinkedIn string
	WhatsApp string
}

// FormValues are the raw form inputs.
type FormValues struct {
	Name      string
	Email     string
	Role      string
	Consent   bool
	SessionID string
	Locale    string
}

// Client talks to the waitlist API.
type Client struct {
	baseURL   string
	shareURL  string
	utmSource string
	timeout   time.Duration
	tracker   *Tracker
	onSuccess func(Outcome)
}

// Option configures a Client.
type Option func(*Client)

// WithUTMSource forwards the landing page's utm_source.
func WithUTMSource(source string) Option {
	return func(c *Client) { c.utmSource = strings.TrimSpace(source) }
}

// WithTracker sends success/error beacons through t.
func WithTracker(t *Tracker) Option {
	return func(c *Client) { c.tracker = t }
}

// WithOnSuccess registers a hook, such as a third-party conversion pixel.
// It runs after a successful submit; panics in it are contained.
func WithOnSuccess(fn func(Outcome)) Option {
	return func(c *Client) { c.onSuccess = fn }
}

// WithShareURL sets the page advertised in share links. Defaults to baseURL.
func WithShareURL(u string) Option {
	return func(c *Client) { c.shareURL = u }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shareURL == "" {
		c.shareURL = c.baseURL
	}
	return c
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Email string `json:"email"`
	} `json:"data"`
}

// Submit posts values and maps the response. It never returns a Go error;
// transport failures become OutcomeFailure with Err set.
func (c *Client) Submit(ctx context.Context, v FormValues) Outcome {
	consent := v.Consent
	req := dto.WaitlistSubmitRequest{
		Name:      optional(v.Name),
		Email:     v.Email,
		Role:      optional(v.Role),
		Consent:   &consent,
		SessionID: optional(v.SessionID),
		Locale:    optional(v.Locale),
	}

	endpoint := c.baseURL + "/api/waitlist"
	if c.utmSource != "" {
		endpoint += "?utm_source=" + url.QueryEscape(c.utmSource)
	}

	agent := fiber.Post(endpoint).Timeout(requestTimeout(ctx, c.timeout)).JSON(req)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		c.track(EventError, v.Role)
		return Outcome{Kind: OutcomeFailure, Message: MsgGeneric, Err: errors.Join(errs...)}
	}

	var parsed submitResponse
	_ = json.Unmarshal(body, &parsed)

	switch {
	case code >= 200 && code < 300:
		email := v.Email
		if parsed.Data != nil && parsed.Data.Email != "" {
			email = parsed.Data.Email
		}
		out := Outcome{Kind: OutcomeSuccess, Message: parsed.Message, Email: email, Share: c.shareLinks()}
		c.track(EventSuccess, v.Role)
		c.runOnSuccess(out)
		return out
	case code == fiber.StatusConflict:
		msg := parsed.Message
		if msg == "" {
			msg = MsgAlreadyRegistered
		}
		return Outcome{Kind: OutcomeFieldError, Message: msg, FieldErrors: map[string]string{"email": msg}}
	case code == fiber.StatusTooManyRequests:
		return Outcome{Kind: OutcomeRateLimited, Message: MsgTooManyAttempts}
	default:
		msg := parsed.Message
		if msg == "" {
			msg = MsgGeneric
		}
		c.track(EventError, v.Role)
		return Outcome{Kind: OutcomeFailure, Message: msg}
	}
}

func (c *Client) track(event Event, role string) {
	if c.tracker != nil {
		c.tracker.Track(event, role)
	}
}

func (c *Client) runOnSuccess(out Outcome) {
	if c.onSuccess == nil {
		return
	}
	defer func() { _ = recover() }()
	c.onSuccess(out)
}

func (c *Client) shareLinks() ShareLinks {
	page := c.shareURL + "?ref=share"
	text := "I just joined the Revo Marketplace waitlist!"
	return ShareLinks{
		Twitter:  "https://twitter.com/intent/tweet?text=" + url.QueryEscape(text) + "&url=" + url.QueryEscape(page),
		LinkedIn: "https://www.linkedin.com/sharing/share-offsite/?url=" + url.QueryEscape(page),
		WhatsApp: "https://wa.me/?text=" + url.QueryEscape(text+" "+page),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func requestTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < fallback {
			if remaining <= 0 {
				return time.Millisecond
			}
			return remaining
		}
	}
	return fallback
}
