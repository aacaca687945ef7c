package http

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UnknownIP is the shared identity for callers with no usable address.
const UnknownIP = "unknown"

var dottedQuad = regexp.MustCompile(`^(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)(\.(25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)){3}$`)

// ClientIP picks the best-effort caller address: platform IP, then the first
// X-Forwarded-For hop, then X-Real-IP, then "unknown".
func ClientIP(platformIP, forwardedFor, realIP string) string {
	candidates := []string{platformIP, firstForwarded(forwardedFor), realIP}
	for _, candidate := range candidates {
		if ip := strings.TrimSpace(candidate); ip != "" {
			return normalizeIP(ip)
		}
	}
	return UnknownIP
}

// ClientIPFromCtx reads the identity headers from a fiber request. platformHeader
// names the header a trusted edge sets; empty disables it.
func ClientIPFromCtx(c *fiber.Ctx, platformHeader string) string {
	var platformIP string
	if platformHeader != "" {
		platformIP = c.Get(platformHeader)
	}
	return ClientIP(platformIP, c.Get(fiber.HeaderXForwardedFor), c.Get("X-Real-IP"))
}

// ClientIPResolver binds ClientIPFromCtx to a configured platform header.
func ClientIPResolver(platformHeader string) func(*fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		return ClientIPFromCtx(c, platformHeader)
	}
}

func firstForwarded(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

func normalizeIP(ip string) string {
	const mappedPrefix = "::ffff:"
	if len(ip) > len(mappedPrefix) && strings.EqualFold(ip[:len(mappedPrefix)], mappedPrefix) {
		if embedded := ip[len(mappedPrefix):]; dottedQuad.MatchString(embedded) {
			return embedded
		}
	}
	return ip
}
