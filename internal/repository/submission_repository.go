package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revo-marketplace/waitlist/internal/domain"
)

// ReactivateInput carries the fields refreshed when an unsubscribed email rejoins.
type ReactivateInput struct {
	Name      *string
	Role      *domain.Role
	Consent   bool
	Source    string
	IP        string
	UserAgent string
	SessionID *string
}

// SubmissionRepository defines persistence access for waitlist submissions.
// Every returned error is a *StoreError.
type SubmissionRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.WaitlistSubmission, error)
	Create(ctx context.Context, sub *domain.WaitlistSubmission) error
	Reactivate(ctx context.Context, email string, in ReactivateInput) (*domain.WaitlistSubmission, error)
	UpdateDeliveryStatus(ctx context.Context, id string, sent bool, sentAt *time.Time, locale domain.Locale) error
	Unsubscribe(ctx context.Context, email string, at time.Time) (*domain.WaitlistSubmission, error)
	Analytics(ctx context.Context, recentLimit int) (*domain.WaitlistAnalytics, error)
}

type submissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository returns a Postgres-backed implementation.
func NewSubmissionRepository(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepository{pool: pool}
}

const submissionColumns = `id, email, name, role, consent, source, ip, user_agent, country, session_id,
               locale, unsubscribed, unsubscribed_at, email_sent, email_sent_at, created_at, updated_at`

func (r *submissionRepository) GetByEmail(ctx context.Context, email string) (*domain.WaitlistSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM waitlist_submissions WHERE email=$1`

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, classify("get submission by email", err)
	}
	return sub, nil
}

func (r *submissionRepository) Create(ctx context.Context, sub *domain.WaitlistSubmission) error {
	const query = `
        INSERT INTO waitlist_submissions (email, name, role, consent, source, ip, user_agent, country, session_id, locale)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		sub.Email,
		sub.Name,
		sub.Role,
		sub.Consent,
		sub.Source,
		sub.IP,
		sub.UserAgent,
		sub.Country,
		sub.SessionID,
		sub.Locale,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	return classify("create submission", err)
}

// Reactivate flips unsubscribed back to false only if it is still true, so two
// concurrent rejoins cannot both succeed.
func (r *submissionRepository) Reactivate(ctx context.Context, email string, in ReactivateInput) (*domain.WaitlistSubmission, error) {
	query := `
        UPDATE waitlist_submissions
        SET unsubscribed=false, unsubscribed_at=NULL, consent=$2, role=$3, name=$4, source=$5,
            ip=$6, user_agent=$7, session_id=$8, email_sent=false, email_sent_at=NULL, updated_at=NOW()
        WHERE email=$1 AND unsubscribed=true
        RETURNING ` + submissionColumns

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query,
		email,
		in.Consent,
		in.Role,
		in.Name,
		in.Source,
		in.IP,
		in.UserAgent,
		in.SessionID,
	))
	if err != nil {
		return nil, classify("reactivate submission", err)
	}
	return sub, nil
}

func (r *submissionRepository) UpdateDeliveryStatus(ctx context.Context, id string, sent bool, sentAt *time.Time, locale domain.Locale) error {
	const query = `
        UPDATE waitlist_submissions SET email_sent=$1, email_sent_at=$2, locale=$3, updated_at=NOW()
        WHERE id=$4`

	cmd, err := r.pool.Exec(ctx, query, sent, sentAt, locale, id)
	if err != nil {
		return classify("update delivery status", err)
	}
	if cmd.RowsAffected() == 0 {
		return classify("update delivery status", pgx.ErrNoRows)
	}
	return nil
}

func (r *submissionRepository) Unsubscribe(ctx context.Context, email string, at time.Time) (*domain.WaitlistSubmission, error) {
	query := `
        UPDATE waitlist_submissions SET unsubscribed=true, unsubscribed_at=COALESCE(unsubscribed_at, $2), updated_at=NOW()
        WHERE email=$1
        RETURNING ` + submissionColumns

	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, email, at))
	if err != nil {
		return nil, classify("unsubscribe", err)
	}
	return sub, nil
}

func (r *submissionRepository) Analytics(ctx context.Context, recentLimit int) (*domain.WaitlistAnalytics, error) {
	const byRoleQuery = `
        SELECT COALESCE(role, $1), COUNT(*)
        FROM waitlist_submissions WHERE unsubscribed=false
        GROUP BY 1`
	const recentQuery = `
        SELECT email, role, created_at
        FROM waitlist_submissions WHERE unsubscribed=false
        ORDER BY created_at DESC LIMIT $1`

	out := &domain.WaitlistAnalytics{SignupsByRole: map[string]int64{}}

	rows, err := r.pool.Query(ctx, byRoleQuery, domain.RoleUnspecified)
	if err != nil {
		return nil, classify("count signups by role", err)
	}
	for rows.Next() {
		var role string
		var count int64
		if err := rows.Scan(&role, &count); err != nil {
			rows.Close()
			return nil, classify("scan role count", err)
		}
		out.SignupsByRole[role] = count
		out.TotalSignups += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("count signups by role", err)
	}

	rows, err = r.pool.Query(ctx, recentQuery, recentLimit)
	if err != nil {
		return nil, classify("list recent signups", err)
	}
	defer rows.Close()
	out.RecentSignups = make([]domain.RecentSignup, 0, recentLimit)
	for rows.Next() {
		var recent domain.RecentSignup
		if err := rows.Scan(&recent.Email, &recent.Role, &recent.CreatedAt); err != nil {
			return nil, classify("scan recent signup", err)
		}
		out.RecentSignups = append(out.RecentSignups, recent)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list recent signups", err)
	}
	return out, nil
}

func scanSubmission(row pgx.Row) (*domain.WaitlistSubmission, error) {
	var sub domain.WaitlistSubmission
	if err := row.Scan(
		&sub.ID,
		&sub.Email,
		&sub.Name,
		&sub.Role,
		&sub.Consent,
		&sub.Source,
		&sub.IP,
		&sub.UserAgent,
		&sub.Country,
		&sub.SessionID,
		&sub.Locale,
		&sub.Unsubscribed,
		&sub.UnsubscribedAt,
		&sub.EmailSent,
		&sub.EmailSentAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sub, nil
}
