package http

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/revo-marketplace/waitlist/internal/observability"
	"github.com/revo-marketplace/waitlist/internal/validation"
	apperrors "github.com/revo-marketplace/waitlist/pkg/util"
)

const errorFormatKey = "error_format"

// ErrorFormat selects the JSON shape of error responses for a route.
type ErrorFormat string

const (
	// ErrorFormatEnvelope renders {success:false, message, code}.
	ErrorFormatEnvelope ErrorFormat = "envelope"
	// ErrorFormatBare renders {error: message}; used by admin routes.
	ErrorFormatBare ErrorFormat = "bare"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

// UseErrorFormat makes the error middleware render errors for this route in f.
func UseErrorFormat(f ErrorFormat) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(errorFormatKey, f)
		return c.Next()
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)
				if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
					logger.Error("request failed",
						zap.String("path", c.Path()),
						zap.Any("request_id", c.Locals("request_id")),
						zap.Error(domainErr))
					observability.CaptureError(domainErr, map[string]string{
						"path":   c.Route().Path,
						"method": c.Method(),
					})
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(errorBody(c, domainErr))
				err = nil
			}
		}()
		return c.Next()
	}
}

func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &apperrors.DomainError{Code: "HTTP_ERROR", Message: fiberErr.Message, HTTPStatus: fiberErr.Code}
	}
	return apperrors.ToDomainError(err)
}

func errorBody(c *fiber.Ctx, domainErr *apperrors.DomainError) fiber.Map {
	if format, _ := c.Locals(errorFormatKey).(ErrorFormat); format == ErrorFormatBare {
		return fiber.Map{"error": domainErr.Message}
	}

	body := fiber.Map{
		"success": false,
		"message": domainErr.Message,
		"code":    domainErr.Code,
	}
	var fieldErrs validation.Errors
	if errors.As(domainErr.Err, &fieldErrs) && len(fieldErrs) > 0 {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field] = fe.Message
		}
		body["errors"] = details
	}
	return body
}
