package auth

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("s3cret-key", "s3cret-key"))
	assert.False(t, ConstantTimeEqual("s3cret-key", "s3cret-kez"), "last character differs")
	assert.False(t, ConstantTimeEqual("s3cret-key", "zzzzzzzzzz"))
	assert.False(t, ConstantTimeEqual("s3cret-key", "s3cret"))
	assert.False(t, ConstantTimeEqual("", "x"))
}

func TestAdminMiddlewareAuthorized(t *testing.T) {
	m := NewAdminMiddleware("admin-secret")

	assert.True(t, m.Authorized("Bearer admin-secret"))
	assert.True(t, m.Authorized("bearer admin-secret"))
	assert.False(t, m.Authorized("Bearer admin-secreu"))
	assert.False(t, m.Authorized("Basic admin-secret"))
	assert.False(t, m.Authorized("admin-secret"))
	assert.False(t, m.Authorized(""))

	unset := NewAdminMiddleware("")
	assert.False(t, unset.Configured())
	assert.False(t, unset.Authorized("Bearer "))
}

func TestUnsubscribeTokenRoundTrip(t *testing.T) {
	s := NewUnsubscribeSigner("signing-secret", 24*time.Hour)

	token, err := s.GenerateToken("ana@farm.co:1700000000000")
	require.NoError(t, err)

	assert.NoError(t, s.VerifyToken("ana@farm.co:1700000000000", token))
	assert.ErrorIs(t, s.VerifyToken("eve@farm.co:1700000000000", token), ErrInvalidUnsubscribeToken)
	assert.ErrorIs(t, s.VerifyToken("ana@farm.co:1700000000001", token), ErrInvalidUnsubscribeToken)

	other := NewUnsubscribeSigner("other-secret", time.Hour)
	assert.ErrorIs(t, other.VerifyToken("ana@farm.co:1700000000000", token), ErrInvalidUnsubscribeToken)
}

func TestBuildAndVerifyLink(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewUnsubscribeSigner("signing-secret", 24*time.Hour)
	s.now = func() time.Time { return now }

	link, err := s.BuildLink("https://revo.example/", "ana@farm.co")
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), link.ExpiresAt)

	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.Equal(t, "/api/waitlist/unsubscribe", u.Path)
	q := u.Query()
	assert.Equal(t, "ana@farm.co", q.Get("email"))
	assert.Equal(t, "1772445600000", q.Get("exp"))

	require.NoError(t, s.VerifyLink(q.Get("email"), q.Get("exp"), q.Get("token")))

	now = now.Add(25 * time.Hour)
	assert.ErrorIs(t, s.VerifyLink(q.Get("email"), q.Get("exp"), q.Get("token")), ErrUnsubscribeLinkExpired)
	assert.ErrorIs(t, s.VerifyLink(q.Get("email"), "not-a-number", q.Get("token")), ErrInvalidUnsubscribeToken)
}

func TestGenerateWithoutSecretFails(t *testing.T) {
	s := NewUnsubscribeSigner("", time.Hour)
	_, err := s.GenerateToken("x")
	assert.Error(t, err)
	assert.ErrorIs(t, s.VerifyToken("x", "y"), ErrInvalidUnsubscribeToken)
}
