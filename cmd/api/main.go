package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kursadbilgin/booking-engine/internal/config"
	"github.com/kursadbilgin/booking-engine/internal/domain"
	"github.com/kursadbilgin/booking-engine/internal/handler"
	"github.com/kursadbilgin/booking-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/booking-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/booking-engine/internal/infra/redis"
	"github.com/kursadbilgin/booking-engine/internal/observability"
	"github.com/kursadbilgin/booking-engine/internal/provider"
	"github.com/kursadbilgin/booking-engine/internal/queue"
	"github.com/kursadbilgin/booking-engine/internal/repository"
	"github.com/kursadbilgin/booking-engine/internal/service"
	"github.com/kursadbilgin/booking-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("booking-engine exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	reminderOffsets, err := cfg.ReminderOffsetDurations()
	if err != nil {
		return err
	}

	defaultChannel, err := domain.ParseChannelFromString(cfg.DefaultChannel)
	if err != nil {
		return err
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer mq.Close()
	publisher := queue.NewRabbitMQPublisher(mq)

	bookingRepo := repository.NewGormBookingRepo(db)
	notificationRepo := repository.NewGormNotificationRepo(db)
	serviceRepo := repository.NewGormServiceRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	catalog, err := service.NewCatalog(serviceRepo, cfg.ServiceCacheTTL, cfg.ServiceCacheMaxSize)
	if err != nil {
		return err
	}

	availability, err := service.NewAvailabilityEngine(catalog, bookingRepo, location)
	if err != nil {
		return err
	}

	scheduler, err := service.NewNotificationScheduler(service.SchedulerPolicy{
		ReminderOffsets: reminderOffsets,
		DefaultChannel:  defaultChannel,
	}, service.NewPlainRenderer(), location)
	if err != nil {
		return err
	}

	bookingService, err := service.NewBookingService(
		bookingRepo,
		notificationRepo,
		catalog,
		availability,
		scheduler,
		publisher,
		location,
		logger,
	)
	if err != nil {
		return err
	}

	gateway, err := provider.NewGatewayProvider(cfg.GatewayWebhookURL)
	if err != nil {
		return err
	}

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return err
	}

	retryEngine, err := service.NewRetryEngine(
		notificationRepo,
		attemptRepo,
		gateway,
		rateLimiter,
		domain.DefaultRetryPolicies(),
		cfg.RetryCycleInterval,
		cfg.RetryCycleLimit,
		cfg.SendTimeout,
		logger,
	)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	bookingService.SetMetrics(metrics)
	retryEngine.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterBookingRoutes(app, bookingService); err != nil {
		return err
	}
	if err := handler.RegisterNotificationRoutes(app, notificationRepo); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("booking-engine api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		logger.Info("retry engine started",
			zap.Duration("interval", cfg.RetryCycleInterval),
			zap.Int("limit", cfg.RetryCycleLimit),
		)
		return retryEngine.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
