package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/revo-marketplace/waitlist/internal/auth"
	"github.com/revo-marketplace/waitlist/internal/domain"
	"github.com/revo-marketplace/waitlist/internal/events"
	"github.com/revo-marketplace/waitlist/internal/geo"
	"github.com/revo-marketplace/waitlist/internal/mailer"
	"github.com/revo-marketplace/waitlist/internal/observability"
	"github.com/revo-marketplace/waitlist/internal/ratelimit"
	"github.com/revo-marketplace/waitlist/internal/repository"
	apperrors "github.com/revo-marketplace/waitlist/pkg/util"
)

// Messages shown to registrants.
const (
	MsgJoined            = "Successfully joined the waitlist!"
	MsgWelcomeBack       = "Welcome back! You've been re-subscribed to the waitlist."
	MsgAlreadyRegistered = "This email is already registered on our waitlist"
	MsgTooManyRequests   = "Too many requests"
	MsgInvalidData       = "Invalid data"
	MsgConsentRequired   = "Consent is required to join the waitlist"
	MsgAnalyticsFailed   = "Failed to fetch analytics data"
	MsgUnsubscribed      = "You have been unsubscribed from the waitlist"
	MsgLinkInvalid       = "Invalid unsubscribe link"
	MsgLinkExpired       = "This unsubscribe link has expired"
	MsgEmailNotFound     = "Email not found on the waitlist"
)

// Outcome labels recorded in metrics.
const (
	outcomeJoined      = "joined"
	outcomeReactivated = "reactivated"
	outcomeDuplicate   = "duplicate"
	outcomeRateLimited = "rate_limited"
	outcomeEmailFailed = "email_failed"
)

// DefaultRecentLimit is the number of recent signups shown to admins.
const DefaultRecentLimit = 10

const eventPublishTimeout = 10 * time.Second

// ConfirmationSender sends the welcome email. *mailer.Mailer satisfies it.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, sub *domain.WaitlistSubmission, loc domain.Locale) mailer.DeliveryResult
}

// WaitlistService coordinates the submission pipeline.
type WaitlistService struct {
	submissions repository.SubmissionRepository
	limiter     ratelimit.Limiter
	locator     geo.Locator
	mailer      ConfirmationSender
	signer      *auth.UnsubscribeSigner
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	recentLimit int
	now         func() time.Time

	inflight sync.WaitGroup
}

// WaitlistDependencies bundles collaborators for the waitlist service.
type WaitlistDependencies struct {
	SubmissionRepo repository.SubmissionRepository
	Limiter        ratelimit.Limiter
	Locator        geo.Locator
	Mailer         ConfirmationSender
	Signer         *auth.UnsubscribeSigner
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	RecentLimit    int
}

// SubmitInput is a validated, normalized submission.
type SubmitInput struct {
	Email     string
	Name      *string
	Role      *domain.Role
	Consent   bool
	Source    string
	IP        string
	UserAgent string
	SessionID *string
	Locale    domain.Locale
}

// SubmitResult describes a successful join or rejoin.
type SubmitResult struct {
	Submission  *domain.WaitlistSubmission
	Reactivated bool
	Delivery    mailer.DeliveryResult
}

// Message is the response text for the result.
func (r SubmitResult) Message() string {
	if r.Reactivated {
		return MsgWelcomeBack
	}
	return MsgJoined
}

// NewWaitlistService constructs the service.
func NewWaitlistService(deps WaitlistDependencies) *WaitlistService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locator := deps.Locator
	if locator == nil {
		locator = geo.Noop{}
	}
	recent := deps.RecentLimit
	if recent <= 0 {
		recent = DefaultRecentLimit
	}
	return &WaitlistService{
		submissions: deps.SubmissionRepo,
		limiter:     deps.Limiter,
		locator:     locator,
		mailer:      deps.Mailer,
		signer:      deps.Signer,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		recentLimit: recent,
		now:         time.Now,
	}
}

// AllowSubmission consumes one rate-limit slot for ip. Limiter failures are
// logged and the request is let through.
func (s *WaitlistService) AllowSubmission(ctx context.Context, ip string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, ip)
	if err != nil {
		s.logger.Warn("rate limiter unavailable; allowing request", zap.Error(err))
		return nil
	}
	if !allowed {
		s.metrics.RecordOutcome(outcomeRateLimited)
		return apperrors.NewTooManyRequests(MsgTooManyRequests)
	}
	return nil
}

// Submit creates a new submission, reactivates an unsubscribed one, or reports
// a conflict for an active one. Geolocation and email failures never fail it.
func (s *WaitlistService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if !in.Consent {
		return nil, apperrors.NewConsentRequired(MsgConsentRequired)
	}
	if in.Locale == "" {
		in.Locale = domain.LocaleEN
	}

	existing, err := s.submissions.GetByEmail(ctx, in.Email)
	switch {
	case repository.IsNotFound(err):
		return s.create(ctx, in)
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	case existing.Unsubscribed:
		return s.reactivate(ctx, in)
	default:
		s.metrics.RecordOutcome(outcomeDuplicate)
		return nil, apperrors.NewConflict(MsgAlreadyRegistered)
	}
}

func (s *WaitlistService) create(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	sub := &domain.WaitlistSubmission{
		Email:     in.Email,
		Name:      in.Name,
		Role:      in.Role,
		Consent:   true,
		Source:    in.Source,
		IP:        in.IP,
		UserAgent: in.UserAgent,
		SessionID: in.SessionID,
		Locale:    in.Locale,
	}

	if loc := s.locator.Lookup(ctx, in.IP); loc.OK() {
		country := loc.Country
		sub.Country = &country
	} else {
		s.logger.Debug("geolocation unavailable", zap.String("ip", in.IP), zap.Error(loc.Err))
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		if repository.IsUniqueViolation(err) {
			s.metrics.RecordOutcome(outcomeDuplicate)
			return nil, apperrors.NewConflict(MsgAlreadyRegistered)
		}
		return nil, apperrors.NewInternalError(err)
	}

	delivery := s.deliver(ctx, sub, in.Locale)
	s.metrics.RecordOutcome(outcomeJoined)
	s.logger.Info("waitlist submission created",
		zap.String("submission_id", sub.ID),
		observability.RedactEmail(sub.Email),
		zap.Bool("email_sent", delivery.Sent))
	s.publish(events.NewEvent(events.EventWaitlistJoined, sub.ID, events.NewSignupPayload(sub)))

	return &SubmitResult{Submission: sub, Delivery: delivery}, nil
}

func (s *WaitlistService) reactivate(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	sub, err := s.submissions.Reactivate(ctx, in.Email, repository.ReactivateInput{
		Name:      in.Name,
		Role:      in.Role,
		Consent:   true,
		Source:    in.Source,
		IP:        in.IP,
		UserAgent: in.UserAgent,
		SessionID: in.SessionID,
	})
	if err != nil {
		// Lost the compare-and-swap to a concurrent rejoin.
		if repository.IsNotFound(err) {
			s.metrics.RecordOutcome(outcomeDuplicate)
			return nil, apperrors.NewConflict(MsgAlreadyRegistered)
		}
		return nil, apperrors.NewInternalError(err)
	}

	delivery := s.deliver(ctx, sub, in.Locale)
	s.metrics.RecordOutcome(outcomeReactivated)
	s.logger.Info("waitlist submission reactivated",
		zap.String("submission_id", sub.ID),
		observability.RedactEmail(sub.Email),
		zap.Bool("email_sent", delivery.Sent))
	s.publish(events.NewEvent(events.EventWaitlistReactivated, sub.ID, events.NewSignupPayload(sub)))

	return &SubmitResult{Submission: sub, Reactivated: true, Delivery: delivery}, nil
}

// deliver sends the confirmation and records the outcome on sub. Failures of
// either step are logged only.
func (s *WaitlistService) deliver(ctx context.Context, sub *domain.WaitlistSubmission, loc domain.Locale) mailer.DeliveryResult {
	var res mailer.DeliveryResult
	if s.mailer == nil {
		res = mailer.DeliveryResult{Locale: loc, Err: mailer.ErrTransportDisabled}
	} else {
		res = s.mailer.SendConfirmation(ctx, sub, loc)
	}

	if res.Err != nil {
		s.metrics.RecordOutcome(outcomeEmailFailed)
		s.logger.Warn("confirmation email not sent",
			zap.String("submission_id", sub.ID),
			observability.RedactEmail(sub.Email),
			zap.Error(res.Err))
	}

	if !res.Sent && sub.Locale == loc {
		return res
	}

	sub.Locale = loc
	if res.Sent {
		sentAt := res.SentAt
		sub.EmailSent = true
		sub.EmailSentAt = &sentAt
	}
	if err := s.submissions.UpdateDeliveryStatus(ctx, sub.ID, sub.EmailSent, sub.EmailSentAt, loc); err != nil {
		s.logger.Error("failed to save email delivery status",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
	}
	return res
}

// Analytics returns aggregate counts over active signups.
func (s *WaitlistService) Analytics(ctx context.Context) (*domain.WaitlistAnalytics, error) {
	out, err := s.submissions.Analytics(ctx, s.recentLimit)
	if err != nil {
		return nil, &apperrors.DomainError{
			Code:       apperrors.CodeInternal,
			Message:    MsgAnalyticsFailed,
			HTTPStatus: http.StatusInternalServerError,
			Err:        err,
		}
	}
	return out, nil
}

// Unsubscribe verifies a signed link and opts the email out. Repeated calls
// with a valid link succeed without emitting another event.
func (s *WaitlistService) Unsubscribe(ctx context.Context, email, exp, token string) (*domain.WaitlistSubmission, error) {
	if s.signer == nil {
		return nil, apperrors.NewValidationError(MsgLinkInvalid)
	}
	if err := s.signer.VerifyLink(email, exp, token); err != nil {
		if errors.Is(err, auth.ErrUnsubscribeLinkExpired) {
			return nil, apperrors.NewValidationError(MsgLinkExpired)
		}
		return nil, apperrors.NewValidationError(MsgLinkInvalid)
	}

	at := s.now().UTC().Truncate(time.Microsecond)
	sub, err := s.submissions.Unsubscribe(ctx, strings.ToLower(strings.TrimSpace(email)), at)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound(MsgEmailNotFound)
		}
		return nil, apperrors.NewInternalError(err)
	}

	if sub.UnsubscribedAt != nil && sub.UnsubscribedAt.Equal(at) {
		s.logger.Info("waitlist submission unsubscribed", zap.String("submission_id", sub.ID))
		s.publish(events.NewEvent(events.EventWaitlistUnsubscribed, sub.ID,
			events.UnsubscribedPayload{EmailDomain: events.EmailDomain(sub.Email)}))
	}
	return sub, nil
}

// RecordFunnelEvent counts a client form interaction.
func (s *WaitlistService) RecordFunnelEvent(event domain.FunnelEvent, sessionID string, role *domain.Role) error {
	if !event.Valid() {
		return apperrors.NewValidationError(MsgInvalidData)
	}
	var roleLabel string
	if role != nil {
		roleLabel = string(*role)
	}
	s.metrics.RecordFunnel(string(event), roleLabel)
	s.logger.Debug("funnel event",
		zap.String("event", string(event)),
		zap.String("session_id", sessionID),
		zap.String("role", roleLabel))
	return nil
}

// Funnel returns the current counters.
func (s *WaitlistService) Funnel() observability.Snapshot {
	return s.metrics.Snapshot()
}

// Wait blocks until in-flight event deliveries finish.
func (s *WaitlistService) Wait() {
	s.inflight.Wait()
}

// publish hands the event to subscribers off the request path.
func (s *WaitlistService) publish(event events.Event) {
	if s.dispatcher == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		defer cancel()
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event delivery failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}()
}

const maxSourceLen = 64

// ResolveSource derives the signup source from landing-page query values.
func ResolveSource(utmSource, ref string) string {
	if v := strings.TrimSpace(utmSource); v != "" {
		if len(v) > maxSourceLen {
			v = v[:maxSourceLen]
		}
		return v
	}
	if strings.TrimSpace(ref) != "" {
		return domain.SourceReferral
	}
	return domain.SourceDirect
}
