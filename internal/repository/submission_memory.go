package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/revo-marketplace/waitlist/internal/domain"
)

// memorySubmissionRepository keeps submissions in process. It enforces the same
// unique-email and conditional-reactivation rules as the Postgres store and is
// used when no database is configured.
type memorySubmissionRepository struct {
	mu      sync.Mutex
	byEmail map[string]*domain.WaitlistSubmission
	now     func() time.Time
}

// NewMemorySubmissionRepository returns an in-process implementation.
func NewMemorySubmissionRepository() SubmissionRepository {
	return &memorySubmissionRepository{
		byEmail: make(map[string]*domain.WaitlistSubmission),
		now:     time.Now,
	}
}

var errDuplicateEmail = errors.New("duplicate email")

func notFound(op string) error {
	return &StoreError{Kind: KindNotFound, Op: op, Err: pgx.ErrNoRows}
}

func (r *memorySubmissionRepository) GetByEmail(_ context.Context, email string) (*domain.WaitlistSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byEmail[email]
	if !ok {
		return nil, notFound("get submission by email")
	}
	cp := *sub
	return &cp, nil
}

func (r *memorySubmissionRepository) Create(_ context.Context, sub *domain.WaitlistSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[sub.Email]; ok {
		return &StoreError{Kind: KindUniqueViolation, Op: "create submission", Err: errDuplicateEmail}
	}
	now := r.now().UTC()
	sub.ID = uuid.NewString()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	cp := *sub
	r.byEmail[sub.Email] = &cp
	return nil
}

func (r *memorySubmissionRepository) Reactivate(_ context.Context, email string, in ReactivateInput) (*domain.WaitlistSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byEmail[email]
	if !ok || !sub.Unsubscribed {
		return nil, notFound("reactivate submission")
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
	sub.UpdatedAt = r.now().UTC()
	cp := *sub
	return &cp, nil
}

func (r *memorySubmissionRepository) UpdateDeliveryStatus(_ context.Context, id string, sent bool, sentAt *time.Time, locale domain.Locale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.byEmail {
		if sub.ID == id {
			sub.EmailSent = sent
			sub.EmailSentAt = sentAt
			sub.Locale = locale
			sub.UpdatedAt = r.now().UTC()
			return nil
		}
	}
	return notFound("update delivery status")
}

func (r *memorySubmissionRepository) Unsubscribe(_ context.Context, email string, at time.Time) (*domain.WaitlistSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byEmail[email]
	if !ok {
		return nil, notFound("unsubscribe")
	}
	sub.Unsubscribed = true
	if sub.UnsubscribedAt == nil {
		sub.UnsubscribedAt = &at
	}
	sub.UpdatedAt = r.now().UTC()
	cp := *sub
	return &cp, nil
}

func (r *memorySubmissionRepository) Analytics(_ context.Context, recentLimit int) (*domain.WaitlistAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := &domain.WaitlistAnalytics{SignupsByRole: map[string]int64{}}
	active := make([]*domain.WaitlistSubmission, 0, len(r.byEmail))
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
		active = append(active, sub)
	}

	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	if recentLimit >= 0 && len(active) > recentLimit {
		active = active[:recentLimit]
	}
	out.RecentSignups = make([]domain.RecentSignup, 0, len(active))
	for _, sub := range active {
		out.RecentSignups = append(out.RecentSignups, domain.RecentSignup{Email: sub.Email, Role: sub.Role, CreatedAt: sub.CreatedAt})
	}
	return out, nil
}
