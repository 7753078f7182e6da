package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/jobs"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/lock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/notify"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		slog.Error("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET environment variables are required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB, 5*time.Second)
	logging.Setup(cfg.AppEnv, pgLogHandler)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		slog.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	// Job lock: Redis when configured so replicas share it
	var locker lock.Locker = lock.NewLocal()
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		locker = lock.NewRedisLocker(redisClient, "astro:lock:")
		slog.Info("using redis job locks")
	}

	// Services
	clk := clock.Real{}
	mailer := notify.FromConfig(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		Sender:   cfg.SMTPSender,
	})
	gw := gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	userDirectory := services.NewUserDirectory(database.DB)
	planService := services.NewPlanService(database.DB)
	entitlementService := services.NewEntitlementService(database.DB, userDirectory, clk)
	paymentService := services.NewPaymentService(database.DB, gw, userDirectory, entitlementService, mailer, clk, cfg.PaymentCurrency)
	sweeper := services.NewSweeper(database.DB, paymentService, entitlementService, mailer, clk, cfg.PendingPaymentTimeout)

	// Background jobs
	runner := jobs.NewRunner(locker)
	runner.Add(jobs.Job{
		Name:       "expire_entitlements",
		Interval:   cfg.ExpirySweepInterval,
		RunOnStart: true,
		Run:        sweeper.SweepExpired,
	})
	runner.Add(jobs.Job{
		Name:     "fail_stale_payments",
		Interval: cfg.PendingSweepInterval,
		Run:      sweeper.SweepStalePending,
	})
	runner.Add(jobs.Job{
		Name:     "prune_system_logs",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) (int, error) {
			return logging.PruneSystemLogs(ctx, database.DB, clk.Now().Add(-cfg.LogRetention))
		},
	})
	runner.Start(context.Background())

	// Handlers
	healthHandler := handlers.NewHealthHandler(database.Ping)
	planHandler := handlers.NewPlanHandler(planService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, clk)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService)
	jobHandler := handlers.NewJobHandler(runner)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB, registry, healthHandler, planHandler, paymentHandler, entitlementHandler, jobHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	runner.Stop()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
