package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revo-marketplace/waitlist/internal/domain"
)

// Runs against a real database when TEST_POSTGRES_DSN points at one with the
// migrations applied.
func newIntegrationRepo(t *testing.T) SubmissionRepository {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewSubmissionRepository(pool)
}

func TestSubmissionRepositoryLifecycle(t *testing.T) {
	repo := newIntegrationRepo(t)
	ctx := context.Background()
	email := "it-" + uuid.NewString() + "@example.com"
	role := domain.RoleFarmer

	sub := &domain.WaitlistSubmission{Email: email, Role: &role, Consent: true, Source: domain.SourceDirect, IP: "unknown", Locale: domain.LocaleEN}
	require.NoError(t, repo.Create(ctx, sub))
	assert.NotEmpty(t, sub.ID)

	dup := &domain.WaitlistSubmission{Email: email, Consent: true, Source: domain.SourceDirect, Locale: domain.LocaleEN}
	assert.True(t, IsUniqueViolation(repo.Create(ctx, dup)))

	_, err := repo.Reactivate(ctx, email, ReactivateInput{Consent: true})
	assert.True(t, IsNotFound(err), "active rows must not be reactivated")

	_, err = repo.Unsubscribe(ctx, email, time.Now())
	require.NoError(t, err)

	investor := domain.RoleInvestor
	back, err := repo.Reactivate(ctx, email, ReactivateInput{Consent: true, Role: &investor, Source: domain.SourceReferral})
	require.NoError(t, err)
	assert.False(t, back.Unsubscribed)
	assert.Equal(t, domain.RoleInvestor, back.RoleValue())
	assert.Equal(t, sub.CreatedAt.Unix(), back.CreatedAt.Unix())

	now := time.Now()
	require.NoError(t, repo.UpdateDeliveryStatus(ctx, back.ID, true, &now, domain.LocaleES))
}
