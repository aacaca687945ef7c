package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// memoryRepo mimics the unique index and the conditional reactivation update.
type memoryRepo struct {
	mu          sync.Mutex
	byEmail     map[string]*domain.WaitlistSubmission
	seq         int
	failGet     error
	failUpdate  error
	deliveries  int
	createCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byEmail: map[string]*domain.WaitlistSubmission{}}
}

func storeErr(kind repository.ErrorKind) error {
	return &repository.StoreError{Kind: kind, Op: "test", Err: pgx.ErrNoRows}
}

func (r *memoryRepo) GetByEmail(_ context.Context, email string) (*domain.WaitlistSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	sub, ok := r.byEmail[email]
	if !ok {
		return nil, storeErr(repository.KindNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (r *memoryRepo) Create(_ context.Context, sub *domain.WaitlistSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if _, ok := r.byEmail[sub.Email]; ok {
		return storeErr(repository.KindUniqueViolation)
	}
	r.seq++
	sub.ID = "sub-" + strconv.Itoa(r.seq)
	sub.CreatedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sub.UpdatedAt = sub.CreatedAt
	cp := *sub
	r.byEmail[sub.Email] = &cp
	return nil
}

func (r *memoryRepo) Reactivate(_ context.Context, email string, in repository.ReactivateInput) (*domain.WaitlistSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byEmail[email]
	if !ok || !sub.Unsubscribed {
		return nil, storeErr(repository.KindNotFound)
	}
	sub.Unsubscribed = false
	sub.UnsubscribedAt = nil
	sub.Consent = in.Consent
	sub.Role = in.Role
	sub.Name = in.Name
	sub.Source = in.Source
	sub.IP = in.IP
	sub.UserAgent = in.UserAgent
	sub.SessionID = in.SessionID
	sub.EmailSent = false
	sub.EmailSentAt = nil
	cp := *sub
	return &cp, nil
}

func (r *memoryRepo) UpdateDeliveryStatus(_ context.Context, id string, sent bool, sentAt *time.Time, locale domain.Locale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries++
	if r.failUpdate != nil {
		return r.failUpdate
	}
	for _, sub := range r.byEmail {
		if sub.ID == id {
			sub.EmailSent = sent
			sub.EmailSentAt = sentAt
			sub.Locale = locale
			return nil
		}
	}
	return storeErr(repository.KindNotFound)
}

func (r *memoryRepo) Unsubscribe(_ context.Context, email string, at time.Time) (*domain.WaitlistSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byEmail[email]
	if !ok {
		return nil, storeErr(repository.KindNotFound)
	}
	sub.Unsubscribed = true
	if sub.UnsubscribedAt == nil {
		sub.UnsubscribedAt = &at
	}
	cp := *sub
	return &cp, nil
}

func (r *memoryRepo) Analytics(context.Context, int) (*domain.WaitlistAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return nil, r.failGet
	}
	out := &domain.WaitlistAnalytics{SignupsByRole: map[string]int64{}}
	for _, sub := range r.byEmail {
		if sub.Unsubscribed {
			continue
		}
		role := domain.RoleUnspecified
		if sub.Role != nil {
			role = string(*sub.Role)
		}
		out.SignupsByRole[role]++
		out.TotalSignups++
	}
	return out, nil
}

func (r *memoryRepo) get(email string) domain.WaitlistSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byEmail[email]
}

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	sent  []domain.Locale
	calls int
}

func (m *fakeMailer) SendConfirmation(_ context.Context, _ *domain.WaitlistSubmission, loc domain.Locale) mailer.DeliveryResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return mailer.DeliveryResult{Locale: loc, Err: m.err}
	}
	m.sent = append(m.sent, loc)
	return mailer.DeliveryResult{Sent: true, SentAt: time.Date(2026, 3, 1, 10, 0, 1, 0, time.UTC), Locale: loc}
}

type fakeLocator struct {
	result geo.Result
	calls  atomic.Int32
}

func (l *fakeLocator) Lookup(context.Context, string) geo.Result {
	l.calls.Add(1)
	return l.result
}

type fixture struct {
	svc     *WaitlistService
	repo    *memoryRepo
	mailer  *fakeMailer
	locator *fakeLocator
	events  chan events.Event
	signer  *auth.UnsubscribeSigner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newMemoryRepo(),
		mailer:  &fakeMailer{},
		locator: &fakeLocator{result: geo.Result{Country: "KE"}},
		events:  make(chan events.Event, 16),
		signer:  auth.NewUnsubscribeSigner("unsub-secret", 24*time.Hour),
	}
	d := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.events <- e
		return nil
	}
	d.Subscribe(events.EventWaitlistJoined, record)
	d.Subscribe(events.EventWaitlistReactivated, record)
	d.Subscribe(events.EventWaitlistUnsubscribed, record)

	f.svc = NewWaitlistService(WaitlistDependencies{
		SubmissionRepo: f.repo,
		Limiter:        ratelimit.NewMemoryLimiter(3, time.Hour, nil),
		Locator:        f.locator,
		Mailer:         f.mailer,
		Signer:         f.signer,
		Dispatcher:     d,
		Metrics:        observability.NewMetrics(),
	})
	t.Cleanup(f.svc.Wait)
	return f
}

func ptr[T any](v T) *T { return &v }

func validInput(email string) SubmitInput {
	return SubmitInput{
		Email:     email,
		Role:      ptr(domain.RoleFarmer),
		Consent:   true,
		Source:    domain.SourceDirect,
		IP:        "8.8.8.8",
		UserAgent: "test",
		Locale:    domain.LocaleEN,
	}
}

func TestSubmitCreatesRecordAndSendsEmail(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))

	require.NoError(t, err)
	assert.False(t, res.Reactivated)
	assert.Equal(t, MsgJoined, res.Message())
	assert.NotEmpty(t, res.Submission.ID)
	assert.True(t, res.Delivery.Sent)

	stored := f.repo.get("ana@farm.co")
	assert.True(t, stored.EmailSent)
	require.NotNil(t, stored.EmailSentAt)
	require.NotNil(t, stored.Country)
	assert.Equal(t, "KE", *stored.Country)
	assert.Equal(t, []domain.Locale{domain.LocaleEN}, f.mailer.sent)

	f.svc.Wait()
	evt := <-f.events
	assert.Equal(t, events.EventWaitlistJoined, evt.Type)
	assert.Equal(t, res.Submission.ID, evt.SubmissionID)
}

func TestSubmitDuplicateActiveIsConflictWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))
	require.NoError(t, err)
	before := f.repo.get("ana@farm.co")

	second := validInput("ana@farm.co")
	second.Source = "newsletter"
	second.Role = ptr(domain.RoleInvestor)
	_, err = f.svc.Submit(context.Background(), second)

	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, MsgAlreadyRegistered, de.Message)
	assert.Equal(t, 1, f.mailer.calls)

	after := f.repo.get("ana@farm.co")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("duplicate submission mutated record (-before +after):\n%s", diff)
	}
}

func TestSubmitConcurrentSameEmailCreatesOnce(t *testing.T) {
	f := newFixture(t)
	const callers = 20

	var ok, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Submit(context.Background(), validInput("race@farm.co"))
			switch {
			case err == nil:
				ok.Add(1)
			case apperrors.IsStatus(err, http.StatusConflict):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(callers-1), conflicts.Load())
	assert.Len(t, f.repo.byEmail, 1)
}

func TestSubmitReactivatesUnsubscribed(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))
	require.NoError(t, err)
	_, err = f.repo.Unsubscribe(context.Background(), "ana@farm.co", time.Now())
	require.NoError(t, err)

	again := validInput("ana@farm.co")
	again.Role = ptr(domain.RoleInvestor)
	again.Name = ptr("Ana")
	again.Locale = domain.LocaleES
	again.Source = "newsletter"
	res, err := f.svc.Submit(context.Background(), again)

	require.NoError(t, err)
	assert.True(t, res.Reactivated)
	assert.Equal(t, MsgWelcomeBack, res.Message())
	assert.Equal(t, first.Submission.ID, res.Submission.ID)

	stored := f.repo.get("ana@farm.co")
	assert.False(t, stored.Unsubscribed)
	assert.Nil(t, stored.UnsubscribedAt)
	assert.Equal(t, domain.RoleInvestor, stored.RoleValue())
	assert.Equal(t, "Ana", stored.NameValue())
	assert.Equal(t, domain.LocaleES, stored.Locale)
	assert.True(t, stored.EmailSent)
	assert.Equal(t, first.Submission.CreatedAt, stored.CreatedAt)
	assert.Equal(t, 2, f.mailer.calls)
}

func TestSubmitWithoutConsentNeverReactivates(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))
	require.NoError(t, err)
	_, err = f.repo.Unsubscribe(context.Background(), "ana@farm.co", time.Now())
	require.NoError(t, err)

	in := validInput("ana@farm.co")
	in.Consent = false
	_, err = f.svc.Submit(context.Background(), in)

	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, http.StatusBadRequest, de.HTTPStatus)
	assert.Equal(t, MsgConsentRequired, de.Message)
	assert.True(t, f.repo.get("ana@farm.co").Unsubscribed)
}

func TestSubmitSurvivesGeoAndEmailFailures(t *testing.T) {
	f := newFixture(t)
	f.locator.result = geo.Result{Err: errors.New("ipinfo down")}
	f.mailer.err = errors.New("smtp auth failed")

	res, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))

	require.NoError(t, err)
	assert.False(t, res.Delivery.Sent)
	stored := f.repo.get("ana@farm.co")
	assert.Nil(t, stored.Country)
	assert.False(t, stored.EmailSent)
	assert.Nil(t, stored.EmailSentAt)
	assert.Zero(t, f.repo.deliveries, "nothing to record when delivery failed on create")
}

func TestSubmitIgnoresBookkeepingSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failUpdate = errors.New("connection reset")

	res, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))

	require.NoError(t, err)
	assert.True(t, res.Delivery.Sent)
	assert.Equal(t, 1, f.repo.deliveries)
}

func TestSubmitStoreFailureIsOpaque500(t *testing.T) {
	f := newFixture(t)
	f.repo.failGet = &repository.StoreError{Kind: repository.KindTransient, Op: "get", Err: errors.New("dial tcp: timeout")}

	_, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))

	de := apperrors.ToDomainError(err)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "Server error", de.Message)
	assert.Zero(t, f.repo.createCalls)
}

func TestAllowSubmissionFourthAttemptRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.AllowSubmission(ctx, "1.2.3.4"))
	}
	err := f.svc.AllowSubmission(ctx, "1.2.3.4")
	assert.True(t, apperrors.IsStatus(err, http.StatusTooManyRequests))
	assert.NoError(t, f.svc.AllowSubmission(ctx, "5.6.7.8"))
	assert.Equal(t, int64(1), f.svc.Funnel().Outcomes["rate_limited"])
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("redis down") }
func (brokenLimiter) Sweep(context.Context) error                 { return nil }

func TestAllowSubmissionFailsOpen(t *testing.T) {
	svc := NewWaitlistService(WaitlistDependencies{Limiter: brokenLimiter{}})
	assert.NoError(t, svc.AllowSubmission(context.Background(), "1.2.3.4"))
}

func TestUnsubscribeWithSignedLink(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), validInput("ana@farm.co"))
	require.NoError(t, err)
	f.svc.Wait()
	<-f.events

	exp := strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10)
	token := mustToken(t, f.signer, "ana@farm.co", exp)

	sub, err := f.svc.Unsubscribe(context.Background(), "ana@farm.co", exp, token)
	require.NoError(t, err)
	assert.True(t, sub.Unsubscribed)
	f.svc.Wait()
	evt := <-f.events
	assert.Equal(t, events.EventWaitlistUnsubscribed, evt.Type)

	_, err = f.svc.Unsubscribe(context.Background(), "ana@farm.co", exp, token)
	require.NoError(t, err)
	f.svc.Wait()
	assert.Empty(t, f.events, "repeat unsubscribe emits nothing")
}

func TestUnsubscribeRejectsBadLinks(t *testing.T) {
	f := newFixture(t)
	exp := strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10)
	expired := strconv.FormatInt(time.Now().Add(-time.Minute).UnixMilli(), 10)

	_, err := f.svc.Unsubscribe(context.Background(), "ana@farm.co", exp, "garbage")
	assert.Equal(t, MsgLinkInvalid, apperrors.ToDomainError(err).Message)

	_, err = f.svc.Unsubscribe(context.Background(), "ana@farm.co", expired, mustToken(t, f.signer, "ana@farm.co", expired))
	assert.Equal(t, MsgLinkExpired, apperrors.ToDomainError(err).Message)

	_, err = f.svc.Unsubscribe(context.Background(), "ghost@farm.co", exp, mustToken(t, f.signer, "ghost@farm.co", exp))
	assert.True(t, apperrors.IsStatus(err, http.StatusNotFound))
}

func TestAnalyticsFailureMessage(t *testing.T) {
	f := newFixture(t)
	f.repo.failGet = errors.New("boom")

	_, err := f.svc.Analytics(context.Background())

	de := apperrors.ToDomainError(err)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, MsgAnalyticsFailed, de.Message)
}

func TestAnalyticsBucketsMissingRole(t *testing.T) {
	f := newFixture(t)
	in := validInput("norole@farm.co")
	in.Role = nil
	_, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), validInput("farmer@farm.co"))
	require.NoError(t, err)

	out, err := f.svc.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.TotalSignups)
	assert.Equal(t, map[string]int64{"unspecified": 1, "farmer": 1}, out.SignupsByRole)
}

func TestRecordFunnelEvent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.RecordFunnelEvent(domain.FunnelFocus, "s1", nil))
	require.NoError(t, f.svc.RecordFunnelEvent(domain.FunnelSubmit, "s1", ptr(domain.RoleFarmer)))
	assert.Error(t, f.svc.RecordFunnelEvent("page_view", "s1", nil))

	snap := f.svc.Funnel()
	assert.Equal(t, int64(1), snap.Funnel["form_focus"])
	assert.Equal(t, int64(1), snap.Funnel["form_submit|farmer"])
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, "twitter", ResolveSource(" twitter ", "abc"))
	assert.Equal(t, domain.SourceReferral, ResolveSource("", "abc"))
	assert.Equal(t, domain.SourceDirect, ResolveSource("", ""))
	assert.Len(t, ResolveSource(strings.Repeat("a", 100), ""), 64)
}

func mustToken(t *testing.T, s *auth.UnsubscribeSigner, email, exp string) string {
	t.Helper()
	token, err := s.GenerateToken(email + ":" + exp)
	require.NoError(t, err)
	return token
}
