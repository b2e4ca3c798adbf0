package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpAdapter "github.com/voxline/robocall-qa-backend/internal/adapters/primary/http"
	mw "github.com/voxline/robocall-qa-backend/internal/adapters/primary/http/middleware"
	"github.com/voxline/robocall-qa-backend/internal/adapters/primary/websocket"
	"github.com/voxline/robocall-qa-backend/internal/adapters/secondary/blobstore"
	"github.com/voxline/robocall-qa-backend/internal/adapters/secondary/evaluator"
	"github.com/voxline/robocall-qa-backend/internal/adapters/secondary/kafka"
	"github.com/voxline/robocall-qa-backend/internal/adapters/secondary/postgres"
	"github.com/voxline/robocall-qa-backend/internal/auth"
	"github.com/voxline/robocall-qa-backend/internal/config"
	"github.com/voxline/robocall-qa-backend/internal/core/ports"
	"github.com/voxline/robocall-qa-backend/internal/core/services"
	"github.com/voxline/robocall-qa-backend/internal/database"
	"github.com/voxline/robocall-qa-backend/internal/infrastructure/logging"
	"github.com/voxline/robocall-qa-backend/internal/infrastructure/metrics"
	"github.com/voxline/robocall-qa-backend/internal/scorecard"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate("file://migrations", cfg.Database.URL, logger); err != nil {
			logger.Error("database migration failed", "error", err)
			os.Exit(1)
		}
	}

	// 4. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	hub := websocket.NewHub(logger)
	go hub.Run()

	// 5. Initialize Rate Limiters
	var generalRateLimiter, webhookRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		webhookRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.WebhookRPS,
			BurstSize:         cfg.RateLimit.WebhookBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
	}

	// 6. Dependency Injection (Wiring the Hexagon)

	// Error Handler & Metrics
	errorHandler := httpAdapter.NewErrorHandler(logger)
	serviceMetrics := metrics.NewDefault()

	// Scorecard
	card, err := scorecard.Load(cfg.Scorecard.Path)
	if err != nil {
		logger.Error("failed to load scorecard", "error", err)
		os.Exit(1)
	}
	logger.Info("scorecard loaded", "name", card.Name, "criteria", len(card.Criteria))

	// Repositories (Secondary Adapters)
	ticketRepo := postgres.NewTicketRepository(pool)

	// Outbound Adapters
	blobs := blobstore.NewHTTPStore(cfg.BlobStore.UploadURL, cfg.BlobStore.PublicURL, cfg.BlobStore.Token, cfg.BlobStore.Timeout)
	evaluatorClient := evaluator.NewClient(cfg.Evaluator.URL, cfg.Evaluator.APIKey, cfg.Evaluator.Timeout)

	var publisher ports.EventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = kafkaPublisher
		logger.Info("kafka publisher enabled", "topic", cfg.Kafka.Topic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("closing event publisher", "error", err)
		}
	}()

	// Services (Core)
	verifier := services.NewSignatureVerifier(cfg.Webhook.Secret)
	normalizer := services.NewTranscriptNormalizer()
	allocator := services.NewTicketNumberAllocator(ticketRepo)
	reconciler := services.NewTicketReconciler(ticketRepo, allocator, publisher, hub, logger)
	audioDispatcher := services.NewAudioIngestDispatcher(ticketRepo, blobs, allocator, publisher, cfg.Tickets.DirectUploadAgentID, logger)
	evaluationTrigger := services.NewEvaluationTrigger(ticketRepo, evaluatorClient, card, publisher, hub, cfg.Evaluator.Timeout, logger)
	ticketService := services.NewTicketService(ticketRepo, hub, cfg.Tickets.PendingEvalLimit, logger)

	// Handlers (Primary Adapters)
	webhookHandler := httpAdapter.NewWebhookHandler(
		verifier,
		normalizer,
		reconciler,
		audioDispatcher,
		evaluationTrigger,
		cfg.Webhook.SignatureHeader,
		cfg.Webhook.AutoEvaluate,
		serviceMetrics,
		errorHandler,
		logger,
	)
	ticketHandler := httpAdapter.NewTicketHandler(ticketService, reconciler, errorHandler, logger)
	evaluationHandler := httpAdapter.NewEvaluationHandler(evaluationTrigger, serviceMetrics, errorHandler, logger)
	recordingHandler := httpAdapter.NewRecordingHandler(audioDispatcher, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Apply general rate limiting if enabled
	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Webhook routes authenticate via signature, not JWT
		r.Group(func(r chi.Router) {
			if webhookRateLimiter != nil {
				r.Use(webhookRateLimiter.Middleware)
			}
			r.Route("/webhooks", webhookHandler.RegisterRoutes)
		})

		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Route("/tickets", ticketHandler.RegisterRoutes)
			r.Route("/evaluations", evaluationHandler.RegisterRoutes)
			r.Route("/recordings", recordingHandler.RegisterRoutes)
		})
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Let in-flight detached evaluations finish before the process exits.
	evaluationTrigger.Shutdown()

	logger.Info("server shutdown complete")
}
