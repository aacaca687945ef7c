package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/revo-marketplace/waitlist/pkg/util"
)

// AdminMiddleware guards admin routes with a static bearer secret.
type AdminMiddleware struct {
	secret string
}

// NewAdminMiddleware constructs middleware. An empty secret rejects every call.
func NewAdminMiddleware(secret string) *AdminMiddleware {
	return &AdminMiddleware{secret: secret}
}

// Configured reports whether a secret was provided.
func (m *AdminMiddleware) Configured() bool {
	return m.secret != ""
}

// Handle answers 401 for a missing header, a missing secret or a wrong token alike.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	if !m.Authorized(c.Get(fiber.HeaderAuthorization)) {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	return c.Next()
}

// Authorized checks an Authorization header value.
func (m *AdminMiddleware) Authorized(header string) bool {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	if m.secret == "" {
		return false
	}
	return ConstantTimeEqual(token, m.secret)
}
