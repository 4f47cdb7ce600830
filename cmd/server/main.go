package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/infrastructure/auth"
	"github.com/bankbridge/backend/internal/infrastructure/bank"
	"github.com/bankbridge/backend/internal/infrastructure/cache"
	"github.com/bankbridge/backend/internal/infrastructure/config"
	"github.com/bankbridge/backend/internal/infrastructure/logger"
	"github.com/bankbridge/backend/internal/infrastructure/persistence"
	"github.com/bankbridge/backend/internal/infrastructure/scheduler"
	"github.com/bankbridge/backend/internal/infrastructure/storage"
	"github.com/bankbridge/backend/internal/infrastructure/telemetry"
	"github.com/bankbridge/backend/internal/interfaces/http/handler"
	"github.com/bankbridge/backend/internal/interfaces/http/middleware"
	"github.com/bankbridge/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	zapLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = zapLog.Sync() }()

	zapLog.Info("Starting BankBridge backend",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	gormLogger := logger.NewGormLogger(zapLog, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLogger)
	if err != nil {
		zapLog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLog.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Telemetry
	ctx := context.Background()
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	var bankingMetrics *telemetry.BankingMetrics
	if meterProvider.IsEnabled() {
		bankingMetrics, err = telemetry.NewBankingMetrics(meterProvider.Meter("bankbridge/banking"), zapLog)
		if err != nil {
			zapLog.Fatal("Failed to initialize banking metrics", zap.Error(err))
		}
	}

	// Repositories
	integrationRepo := persistence.NewGormBankIntegrationRepository(db.DB)
	accountRepo := persistence.NewGormBankAccountRepository(db.DB)
	transactionRepo := persistence.NewGormBankTransactionRepository(db.DB)
	orderRepo := persistence.NewGormPaymentOrderRepository(db.DB)
	syncLogRepo := persistence.NewGormBankSyncLogRepository(db.DB)

	// OAuth callback idempotency: Redis when reachable, in-process
	// fallback otherwise. The fallback is fine for single-instance
	// deployments; bank retries against another replica would not be
	// deduplicated.
	var idempotency shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		zapLog.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		idempotency = cache.NewInMemoryIdempotencyStore()
	} else {
		idempotency = redisStore
	}

	// Bank adapters
	providers, err := bank.NewProviderRegistryWithTimeout(bank.DefaultRegistry(), cfg.Bank.RequestTimeout)
	if err != nil {
		zapLog.Fatal("Failed to build bank provider registry", zap.Error(err))
	}

	// Raw statement archival
	var archiver appbanking.StatementArchiver
	if cfg.Storage.Enabled {
		s3Archiver, err := storage.NewS3StatementArchiver(&cfg.Storage)
		if err != nil {
			zapLog.Fatal("Failed to initialize statement archiver", zap.Error(err))
		}
		archiver = s3Archiver
	}

	// Application services
	tokenService := appbanking.NewTokenService(integrationRepo, providers, zapLog)
	integrationService := appbanking.NewIntegrationService(
		integrationRepo, accountRepo, providers, tokenService,
		idempotency, cfg.Bank.OAuthRedirectURI, zapLog,
	)
	syncService := appbanking.NewSyncService(
		integrationRepo, accountRepo, transactionRepo, syncLogRepo,
		providers, tokenService, archiver, bankingMetrics, zapLog,
	)
	categorizationService := appbanking.NewCategorizationService(
		transactionRepo, banking.NewCategorizer(transactionRepo), bankingMetrics, zapLog,
	)
	paymentService := appbanking.NewPaymentOrderService(
		orderRepo, accountRepo, integrationRepo, providers,
		tokenService, bankingMetrics, zapLog,
	)

	// Background sweeps
	sweepScheduler, err := scheduler.NewBankSweepScheduler(scheduler.BankSweepSchedulerConfig{
		Enabled:               cfg.Scheduler.Enabled,
		PaymentStatusInterval: cfg.Scheduler.PaymentStatusInterval,
		CategorizeInterval:    cfg.Scheduler.CategorizeInterval,
		SweepTimeout:          5 * time.Minute,
	}, paymentService, categorizationService, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to build sweep scheduler", zap.Error(err))
	}
	if err := sweepScheduler.Start(ctx); err != nil {
		zapLog.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}

	// HTTP layer
	jwtService := auth.NewJWTService(cfg.JWT)
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		zapLog.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(zapLog))
	engine.Use(logger.GinMiddleware(zapLog))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(int64(cfg.HTTP.MaxHeaderBytes)))
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(
			cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow,
		)))
	}

	systemHandler := handler.NewSystemHandler(db)
	engine.GET("/healthz", systemHandler.Health)

	apiRouter := router.NewRouter(engine, router.WithAPIVersion("v1"))
	apiRouter.Use(middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/bank/oauth/callback",
			"/api/v1/system/info",
		},
		Logger: zapLog,
	}))
	apiRouter.RegisterGroup("/bank", nil,
		handler.NewBankIntegrationHandler(integrationService, syncService),
		handler.NewBankTransactionHandler(categorizationService),
		handler.NewPaymentOrderHandler(paymentService),
	)
	apiRouter.RegisterGroup("/system", nil, systemInfoRegistrar{systemHandler})
	apiRouter.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sweepScheduler.Stop(shutdownCtx); err != nil {
		zapLog.Error("Sweep scheduler shutdown failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Tracer provider shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}

// systemInfoRegistrar mounts the JWT-free system info route
type systemInfoRegistrar struct {
	h *handler.SystemHandler
}

func (r systemInfoRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/info", r.h.GetSystemInfo)
}
