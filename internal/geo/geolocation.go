// Package geo resolves a best-effort country for a client IP.
package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

var ErrUnroutableIP = errors.New("ip is not publicly routable")

// Result is the outcome of a lookup. A non-nil Err never blocks a submission.
type Result struct {
	Country string
	Err     error
}

// OK reports whether a country was resolved.
func (r Result) OK() bool {
	return r.Err == nil && r.Country != ""
}

// Locator looks up the country for an IP.
type Locator interface {
	Lookup(ctx context.Context, ip string) Result
}

// Noop is used when geolocation is disabled.
type Noop struct{}

func (Noop) Lookup(context.Context, string) Result {
	return Result{Err: errors.New("geolocation disabled")}
}

// HTTPLocator queries an ipinfo-compatible JSON API: GET {base}/{ip}/json.
type HTTPLocator struct {
	baseURL string
	token   string
	timeout time.Duration
}

// NewHTTPLocator builds a locator.
func NewHTTPLocator(baseURL, token string, timeout time.Duration) *HTTPLocator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPLocator{baseURL: strings.TrimRight(baseURL, "/"), token: token, timeout: timeout}
}

type ipInfoResponse struct {
	Country string `json:"country"`
	Bogon   bool   `json:"bogon"`
}

// Lookup never panics and never returns a Go error; failures land in Result.Err.
func (l *HTTPLocator) Lookup(ctx context.Context, ip string) Result {
	if err := routable(ip); err != nil {
		return Result{Err: err}
	}

	timeout := l.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return Result{Err: context.DeadlineExceeded}
	}

	endpoint := fmt.Sprintf("%s/%s/json", l.baseURL, url.PathEscape(ip))
	if l.token != "" {
		endpoint += "?token=" + url.QueryEscape(l.token)
	}

	var out ipInfoResponse
	agent := fiber.Get(endpoint).Timeout(timeout)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	code, _, errs := agent.Struct(&out)
	if len(errs) > 0 {
		return Result{Err: fmt.Errorf("geolocation request: %w", errors.Join(errs...))}
	}
	if code != fiber.StatusOK {
		return Result{Err: fmt.Errorf("geolocation status %d", code)}
	}
	if out.Bogon || out.Country == "" {
		return Result{Err: errors.New("geolocation returned no country")}
	}
	return Result{Country: out.Country}
}

func routable(raw string) error {
	ip := net.ParseIP(raw)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrUnroutableIP, raw)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrUnroutableIP, raw)
	}
	return nil
}
