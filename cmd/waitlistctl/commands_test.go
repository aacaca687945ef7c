package main

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revo-marketplace/waitlist/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUnsubscribeLinkCommand(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://revo.example/")
	t.Setenv("UNSUBSCRIBE_SECRET", "cli-secret")

	out, err := run(t, "unsubscribe-link", " Ana@Farm.co ")
	require.NoError(t, err)

	u, err := url.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "revo.example", u.Host)
	assert.Equal(t, "/api/waitlist/unsubscribe", u.Path)
	q := u.Query()
	assert.Equal(t, "ana@farm.co", q.Get("email"))

	signer := auth.NewUnsubscribeSigner("cli-secret", 24*time.Hour)
	assert.NoError(t, signer.VerifyLink(q.Get("email"), q.Get("exp"), q.Get("token")))
}

func TestUnsubscribeLinkRequiresSecret(t *testing.T) {
	t.Setenv("UNSUBSCRIBE_SECRET", "")
	t.Setenv("ADMIN_API_KEY", "")

	_, err := run(t, "unsubscribe-link", "ana@farm.co")
	assert.Error(t, err)
}

func TestDatabaseCommandsRequireDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")

	_, err := run(t, "stats")
	assert.ErrorIs(t, err, errNoDatabase)
	_, err = run(t, "migrate")
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestUnsubscribeLinkArgs(t *testing.T) {
	_, err := run(t, "unsubscribe-link")
	assert.Error(t, err)
}
