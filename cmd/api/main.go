package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/cicilan/cicilan-backend/internal/config"
	"github.com/dafibh/cicilan/cicilan-backend/internal/domain"
	"github.com/dafibh/cicilan/cicilan-backend/internal/handler"
	"github.com/dafibh/cicilan/cicilan-backend/internal/middleware"
	"github.com/dafibh/cicilan/cicilan-backend/internal/repository/cache"
	"github.com/dafibh/cicilan/cicilan-backend/internal/repository/postgres"
	"github.com/dafibh/cicilan/cicilan-backend/internal/repository/sqlite"
	"github.com/dafibh/cicilan/cicilan-backend/internal/repository/storage"
	"github.com/dafibh/cicilan/cicilan-backend/internal/service"
	"github.com/dafibh/cicilan/cicilan-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// @title Cicilan API
// @version 1.0
// @description Installment scheduling and payment reconciliation for micro-lending portfolios
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Open the ledger store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open ledger store")
	}
	defer closeStore()
	log.Info().Str("driver", cfg.StoreDriver).Msg("Connected to ledger store")

	// Aggregate summary cache (optional). Left as a nil interface when disabled.
	var summaryCache domain.AggregateCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		summaryCache = cache.NewRedisCache(rdb, cfg.SummaryTTL)
		log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.SummaryTTL).Msg("Loan summary cache enabled")
	} else {
		log.Warn().Msg("REDIS_ADDR not set, loan summaries are read from the ledger store")
	}

	// Closure statement archive (optional)
	var archive domain.ClosureArchive
	if cfg.S3.Bucket != "" {
		s3Archive, err := storage.NewS3ClosureArchive(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 closure archive")
		}
		archive = s3Archive
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Closure statement archive enabled")
	} else {
		log.Warn().Msg("S3_BUCKET not set, closure statements will not be archived")
	}

	// Initialize services
	retry := service.RetryPolicy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	loanService := service.NewLoanService(store, summaryCache, archive, retry, log.Logger)
	paymentService := service.NewPaymentService(store, summaryCache, archive, retry, log.Logger)

	// Change feed
	hub := websocket.NewHub()
	loanService.SetEventPublisher(hub)
	paymentService.SetEventPublisher(hub)

	jwtValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create WebSocket JWT validator")
	}

	// Overdue sweep
	overdueWorker, err := service.NewOverdueWorker(loanService, log.Logger, service.OverdueWorkerConfig{
		Schedule:   cfg.OverdueSweepSchedule,
		RunOnStart: cfg.OverdueSweepRunOnStart,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create overdue worker")
	}
	if err := overdueWorker.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start overdue worker")
	}

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}
	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, middleware.DefaultBurstSize)

	// Initialize handlers
	handlers := handler.Handlers{
		Loan:      handler.NewLoanHandler(loanService, paymentService),
		Payment:   handler.NewPaymentHandler(paymentService),
		Chain:     handler.NewChainHandler(paymentService),
		WebSocket: handler.NewWebSocketHandler(hub, jwtValidator, cfg.CORSOrigins),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"store":       cfg.StoreDriver,
			"subscribers": hub.TotalClientCount(),
		})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, rateLimiter, handlers)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	overdueWorker.Stop()
	rateLimiter.Stop()

	log.Info().Msg("Server exited")
}

// openStore opens the ledger store selected by STORE_DRIVER. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (domain.LedgerStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close SQLite ledger store")
			}
		}, nil

	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		store := postgres.NewLedgerStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("operator", middleware.GetAuth0ID(c)).
				Msg("request")

			return nil
		}
	}
}
