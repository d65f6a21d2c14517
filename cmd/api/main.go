package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-reminders/internal/config"
	"github.com/noah-isme/gema-reminders/internal/database"
	"github.com/noah-isme/gema-reminders/internal/events"
	"github.com/noah-isme/gema-reminders/internal/handler"
	"github.com/noah-isme/gema-reminders/internal/middleware"
	"github.com/noah-isme/gema-reminders/internal/repository"
	"github.com/noah-isme/gema-reminders/internal/router"
	"github.com/noah-isme/gema-reminders/internal/scheduler"
	"github.com/noah-isme/gema-reminders/internal/service"
	"github.com/noah-isme/gema-reminders/pkg/mailer"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := database.ConnectPostgres(connectCtx, cfg.DatabaseURL, database.PoolConfig(cfg.DBPool))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(connectCtx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}
	cancelConnect()

	sender, err := newSender(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure email transport")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assessmentRepo := repository.NewAssessmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	policyService := service.NewPolicyService(policyRepo, redisClient, cfg.PolicyCacheTTL, validate, logger)
	if cfg.SeedDefaultPolicies {
		if _, err := policyService.SeedDefaults(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed default reminder policies")
		}
	}

	notificationService := service.NewNotificationService(notificationRepo, redisClient, "gema:reminders", natsConn, logger)
	schedulerService := service.NewSchedulerService(service.SchedulerRepositories{
		Assessments: assessmentRepo,
		Enrollments: enrollmentRepo,
		Submissions: submissionRepo,
		Reminders:   reminderRepo,
	}, policyService, cfg.GraceWindow, logger)
	eventService := service.NewEventService(schedulerService, assessmentRepo, validate, logger)
	dispatcherService := service.NewDispatcherService(service.DispatcherRepositories{
		Assessments: assessmentRepo,
		Students:    studentRepo,
		Enrollments: enrollmentRepo,
		Submissions: submissionRepo,
		Reminders:   reminderRepo,
		Audit:       auditRepo,
	}, policyService, notificationService, service.DispatcherOptions{
		BatchSize:   cfg.Dispatch.BatchSize,
		Timeout:     cfg.Dispatch.Timeout,
		MaxFailures: cfg.Dispatch.MaxFailures,
		MaxAttempts: cfg.Delivery.MaxAttempts,
	}, logger)
	deliveryService := service.NewDeliveryService(deliveryRepo, reminderRepo, sender, service.DeliveryOptions{
		BatchSize:     cfg.Delivery.BatchSize,
		Timeout:       cfg.Delivery.Timeout,
		SendTimeout:   cfg.Delivery.SendTimeout,
		BackoffBase:   cfg.Delivery.BackoffBase,
		BackoffFactor: cfg.Delivery.BackoffFactor,
		BackoffMax:    cfg.Delivery.BackoffMax,
		StaleAfter:    cfg.Delivery.StaleAfter,
	}, logger)
	reminderService := service.NewReminderService(reminderRepo, validate, logger)
	auditService := service.NewAuditService(auditRepo, validate, logger)

	decoder, err := events.NewDecoder()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to compile event schema")
	}

	rootCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	notificationService.Start(rootCtx)

	if natsConn != nil {
		consumer := events.NewConsumer(natsConn, cfg.NATSPrefix, decoder, eventService, cfg.Dispatch.Timeout, logger)
		if err := consumer.Start(rootCtx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start event consumer")
		}
	}

	jobs := scheduler.New(dispatcherService, deliveryService, scheduler.Config{
		DispatchSpec:    cfg.Dispatch.Schedule,
		DispatchBatch:   cfg.Dispatch.BatchSize,
		DispatchTimeout: cfg.Dispatch.Timeout,
		DeliverySpec:    cfg.Delivery.Schedule,
		DeliveryBatch:   cfg.Delivery.BatchSize,
		DeliveryTimeout: cfg.Delivery.Timeout,
	}, logger)
	if err := jobs.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		EventHandler:        handler.NewEventHandler(eventService, decoder, logger),
		OpsHandler:          handler.NewOpsHandler(dispatcherService, deliveryService, schedulerService, validate, logger),
		PolicyHandler:       handler.NewPolicyHandler(policyService, logger),
		ReminderHandler:     handler.NewReminderHandler(reminderService, logger),
		AuditHandler:        handler.NewAuditHandler(auditService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		HealthProbes:        healthProbes(db, redisClient, natsConn),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		EventRateLimit:      cfg.EventsRateLimit,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, jobs, stopBackground, logger)
}

func newSender(cfg config.Config, logger zerolog.Logger) (mailer.Sender, error) {
	switch cfg.Email.Provider {
	case config.EmailProviderSendGrid:
		return mailer.NewSendGridSender(mailer.SendGridConfig{
			APIKey:      cfg.Email.SendGridAPIKey,
			FromName:    cfg.Email.FromName,
			FromAddress: cfg.Email.FromAddress,
		}, logger)
	default:
		return mailer.NewLogSender(logger), nil
	}
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, jobs *scheduler.Scheduler, stopBackground context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jobs.Stop(ctx)
	stopBackground()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
