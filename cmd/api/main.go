package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/revo-marketplace/waitlist/internal/api/http"
	"github.com/revo-marketplace/waitlist/internal/api/http/handlers"
	"github.com/revo-marketplace/waitlist/internal/auth"
	"github.com/revo-marketplace/waitlist/internal/config"
	"github.com/revo-marketplace/waitlist/internal/events"
	"github.com/revo-marketplace/waitlist/internal/geo"
	"github.com/revo-marketplace/waitlist/internal/mailer"
	"github.com/revo-marketplace/waitlist/internal/observability"
	"github.com/revo-marketplace/waitlist/internal/persistence"
	"github.com/revo-marketplace/waitlist/internal/ratelimit"
	"github.com/revo-marketplace/waitlist/internal/repository"
	"github.com/revo-marketplace/waitlist/internal/service"
	"github.com/revo-marketplace/waitlist/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	flushSentry := observability.InitSentry(cfg, logger)
	defer flushSentry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	readiness := map[string]handlers.Pinger{}

	var submissions repository.SubmissionRepository
	if pool := pg.PoolHandle(); pool != nil {
		submissions = repository.NewSubmissionRepository(pool)
		readiness["postgres"] = pg
	} else {
		logger.Warn("using in-memory submission store; data is lost on restart")
		submissions = repository.NewMemorySubmissionRepository()
	}

	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Backend {
	case "redis":
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		readiness["redis"] = redis
		limiter = ratelimit.NewRedisLimiter(redis.Client, cfg.RateLimit.Limit, cfg.RateLimit.Window())
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window(), nil)
	}

	var locator geo.Locator = geo.Noop{}
	if cfg.Geo.Enabled {
		locator = geo.NewHTTPLocator(cfg.Geo.BaseURL, cfg.Geo.APIToken, cfg.Geo.Timeout())
	}

	transport, err := mailer.NewTransport(ctx, cfg.Email, logger)
	if err != nil {
		logger.Fatal("failed to init email transport", zap.Error(err))
	}
	signer := auth.NewUnsubscribeSigner(cfg.SigningSecret(), cfg.Email.UnsubscribeTTL())
	if cfg.SigningSecret() == "" {
		logger.Warn("no UNSUBSCRIBE_SECRET or ADMIN_API_KEY; confirmation emails cannot carry unsubscribe links")
	}

	adminMiddleware := auth.NewAdminMiddleware(cfg.Admin.APIKey)
	if !adminMiddleware.Configured() {
		logger.Warn("ADMIN_API_KEY not set; admin endpoints will reject every request")
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	waitlistService := service.NewWaitlistService(service.WaitlistDependencies{
		SubmissionRepo: submissions,
		Limiter:        limiter,
		Locator:        locator,
		Mailer:         mailer.New(transport, signer, cfg.App.PublicBaseURL),
		Signer:         signer,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	waitSweeper := worker.StartRateLimitSweeper(sweepCtx, limiter, cfg.RateLimit.SweepInterval(), logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		BodyLimit:             16 * 1024,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Waitlist:        handlers.NewWaitlistHandler(waitlistService, httptransport.ClientIPResolver(cfg.App.PlatformIPHeader)),
		Analytics:       handlers.NewAnalyticsHandler(waitlistService),
		AdminMiddleware: adminMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopSweeper()
	waitSweeper()
	waitlistService.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
