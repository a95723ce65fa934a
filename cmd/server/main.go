package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/cache"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/external/notification"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/external/payment"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/external/station"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/external/user"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/http/fiber/middleware"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/queue"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/adapter/storage/postgres"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/besteffort"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/infrastructure/circuitbreaker"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/logging"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/observability/telemetry"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/ports"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/availability"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/health"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/reconciliation"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/reservation"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/internal/service/session"
	"github.com/ptdat30/EV-Charging-Station-Management-System-sub000/pkg/config"
)

const softFailureBuffer = 256

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// 2. Initialize Logger
	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Development: strings.EqualFold(cfg.Logging.Format, "console"),
	})
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	logger.Info("Starting charging lifecycle service",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(
			cfg.OpenTelemetry.ServiceName,
			cfg.App.Version,
			cfg.OpenTelemetry.Jaeger.Endpoint,
			cfg.OpenTelemetry.Jaeger.SamplerParam,
		)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 4. Initialize Database
	db, err := postgres.NewConnection(postgres.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer postgres.Close(db)

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	reservationRepo := postgres.NewReservationRepository(db, logger)
	sessionRepo := postgres.NewSessionRepository(db, logger)

	// 5. Initialize Cache (Redis when configured, in-process otherwise)
	var kv ports.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		kv = redisCache
	} else {
		logger.Warn("Redis not configured, using in-process cache")
		kv = cache.NewLocalCache(cfg.Cache.CleanupInterval, logger)
	}
	defer kv.Close()

	// 6. Initialize Collaborator Clients
	breakerSettings := func(name string, timeout time.Duration) circuitbreaker.Settings {
		s := circuitbreaker.DefaultSettings(name)
		s.Timeout = cfg.Collaborators.TimeoutFor(timeout)
		if cfg.CircuitBreaker.Enabled {
			s.MaxRequests = cfg.CircuitBreaker.MaxRequests
			s.Interval = cfg.CircuitBreaker.Interval
			s.OpenTimeout = cfg.CircuitBreaker.Timeout
			s.MinRequests = cfg.CircuitBreaker.MinRequests
			s.FailureRatio = cfg.CircuitBreaker.FailureRatio
		}
		return s
	}
	collaborators := cfg.Collaborators

	stations := station.NewClient(circuitbreaker.NewHTTPClient(
		collaborators.Station.URL, breakerSettings("station-directory", collaborators.Station.Timeout), logger,
	), logger)

	users := cache.NewSubscriptionCache(
		user.NewClient(circuitbreaker.NewHTTPClient(
			collaborators.User.URL, breakerSettings("user-directory", collaborators.User.Timeout), logger,
		), logger),
		kv, cfg.Cache.SubscriptionTTL, logger,
	)

	var ledger ports.PaymentLedger
	switch strings.ToLower(collaborators.Payment.Provider) {
	case "stripe":
		ledger = payment.NewStripeLedger(
			collaborators.Payment.Stripe.SecretKey,
			cfg.Lifecycle.Currency,
			collaborators.Payment.Stripe.PaymentMethod,
			logger,
		)
	default:
		ledger = payment.NewLedgerClient(circuitbreaker.NewHTTPClient(
			collaborators.Payment.URL, breakerSettings("payment-ledger", collaborators.Payment.Timeout), logger,
		), logger)
	}

	var notifier ports.NotificationDispatcher
	var broker queue.MessageQueue
	switch strings.ToLower(collaborators.Notification.Transport) {
	case "http":
		notifier = notification.NewHTTPDispatcher(circuitbreaker.NewHTTPClient(
			collaborators.Notification.URL, breakerSettings("notification-dispatcher", collaborators.Notification.Timeout), logger,
		), logger)
	default:
		broker, err = queue.New(queue.Config{
			Driver:      cfg.Queue.Driver,
			NATSURL:     cfg.Queue.NATSURL,
			RabbitMQURL: cfg.Queue.RabbitMQURL,
			ClientName:  cfg.App.Name,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to message broker", zap.Error(err))
		}
		defer broker.Close()
		notifier = notification.NewQueueDispatcher(broker, logger)
	}

	// 7. Initialize Services
	policy := cfg.Lifecycle.Policy()
	soft := besteffort.NewRunner(logger, softFailureBuffer)
	go soft.Drain(ctx, func(f besteffort.Failure) {
		logger.Debug("Soft failure drained",
			zap.String("collaborator", f.Collaborator),
			zap.String("op", f.Op),
			zap.Time("at", f.At),
		)
	})

	resolver := availability.NewResolver(stations, reservationRepo, sessionRepo, logger)
	sessionService := session.NewService(
		sessionRepo, reservationRepo, stations, notifier, users, ledger, soft, policy, logger,
	)
	reservationService := reservation.NewService(
		reservationRepo, sessionRepo, sessionService, resolver, ledger, soft, policy, logger,
	)

	// 8. Start Reconciliation Jobs
	scheduler := reconciliation.NewScheduler(
		reservationRepo, sessionRepo, sessionService, notifier, soft, policy,
		reconciliation.Config{
			ReminderInterval:      cfg.Scheduler.ReminderInterval,
			NoShowInterval:        cfg.Scheduler.NoShowInterval,
			StaleSessionInterval:  cfg.Scheduler.StaleSessionInterval,
			RunImmediatelyOnStart: cfg.Scheduler.RunOnStart,
		},
		logger,
	)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("Failed to start reconciliation scheduler", zap.Error(err))
		}
		defer scheduler.Stop()
	}

	// 9. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}

	healthService := health.NewService(&health.Config{
		Version: cfg.App.Version,
		DB:      db,
		Cache:   kv,
		Queue:   healthReporter(broker),
	}, logger)
	health.NewFiberHandler(healthService).RegisterRoutes(app)

	if cfg.Prometheus.Enabled {
		metrics := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metrics(c.Context())
			return nil
		})
	}

	breaker := middleware.CircuitBreaker("lifecycle-api", logger)
	app.Use("/reservations", breaker)
	app.Use("/sessions", breaker)

	identity := middleware.Identity()
	reservation.NewHandler(reservationService).RegisterRoutes(app, identity)
	session.NewHandler(sessionService).RegisterRoutes(app, identity)
	reconciliation.NewHandler(scheduler).RegisterRoutes(app.Group("/internal"))

	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Error("HTTP Server failed", zap.Error(err))
			stop()
		}
	}()

	// 10. Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

// healthReporter keeps a nil broker from becoming a non-nil interface
func healthReporter(q queue.MessageQueue) health.HealthReporter {
	if q == nil {
		return nil
	}
	return q
}
