package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/revo-marketplace/waitlist/internal/config"
	"github.com/revo-marketplace/waitlist/internal/events"
)

const webhookTimeout = 5 * time.Second

// NotificationService forwards waitlist events to the admin webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventWaitlistJoined, n.handleSignup)
	n.dispatcher.Subscribe(events.EventWaitlistReactivated, n.handleSignup)
	n.dispatcher.Subscribe(events.EventWaitlistUnsubscribed, n.handleUnsubscribed)
}

func (n *NotificationService) handleSignup(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("submission_id", event.SubmissionID), zap.Any("payload", event.Payload))
	return n.postWebhook(ctx, event)
}

func (n *NotificationService) handleUnsubscribed(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("submission_id", event.SubmissionID))
	return n.postWebhook(ctx, event)
}

func (n *NotificationService) postWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}

	timeout := webhookTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(url).Timeout(timeout).JSON(event)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		err := fmt.Errorf("post webhook: %w", errors.Join(errs...))
		n.logger.Warn("webhook delivery failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		return err
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		n.logger.Warn("webhook rejected event", zap.String("event_type", string(event.Type)), zap.Int("status", code))
		return fmt.Errorf("webhook status %d", code)
	}
	n.logger.Debug("webhook delivered", zap.String("event_type", string(event.Type)))
	return nil
}
