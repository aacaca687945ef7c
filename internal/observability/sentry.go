package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/revo-marketplace/waitlist/internal/config"
)

// InitSentry configures the global Sentry hub when a DSN is present. The
// returned func flushes buffered events and is always safe to call.
func InitSentry(cfg *config.Config, logger *zap.Logger) func() {
	if cfg.Sentry.DSN == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.App.Env,
		Release:     cfg.App.Name + "@" + cfg.App.Version,
	})
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
		return func() {}
	}
	logger.Info("sentry enabled")
	return func() { sentry.Flush(2 * time.Second) }
}

// CaptureError reports err with tags. It is a no-op when Sentry is not initialized.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
