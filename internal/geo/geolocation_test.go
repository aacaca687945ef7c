package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPLocatorResolvesCountry(t *testing.T) {
	var gotPath, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"8.8.8.8","country":"US"}`))
	}))
	defer srv.Close()

	res := NewHTTPLocator(srv.URL, "tok", time.Second).Lookup(context.Background(), "8.8.8.8")

	assert.True(t, res.OK())
	assert.Equal(t, "US", res.Country)
	assert.Equal(t, "/8.8.8.8/json", gotPath)
	assert.Equal(t, "tok", gotToken)
}

func TestHTTPLocatorServiceErrorIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res := NewHTTPLocator(srv.URL, "", time.Second).Lookup(context.Background(), "8.8.8.8")

	assert.False(t, res.OK())
	assert.Error(t, res.Err)
	assert.Empty(t, res.Country)
}

func TestHTTPLocatorSkipsUnroutableAddresses(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()
	l := NewHTTPLocator(srv.URL, "", time.Second)

	for _, ip := range []string{"unknown", "127.0.0.1", "10.0.0.8", "192.168.1.1", "::1", "fe80::1", ""} {
		res := l.Lookup(context.Background(), ip)
		assert.ErrorIs(t, res.Err, ErrUnroutableIP, ip)
	}
	assert.Zero(t, calls)
}

func TestHTTPLocatorUnreachable(t *testing.T) {
	res := NewHTTPLocator("http://127.0.0.1:1", "", 200*time.Millisecond).Lookup(context.Background(), "1.1.1.1")
	assert.Error(t, res.Err)
}

func TestNoop(t *testing.T) {
	assert.False(t, Noop{}.Lookup(context.Background(), "1.1.1.1").OK())
}
