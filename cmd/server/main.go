package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cobranza/backend/internal/application/receivables"
	"github.com/cobranza/backend/internal/domain/shared"
	"github.com/cobranza/backend/internal/infrastructure/cache"
	"github.com/cobranza/backend/internal/infrastructure/config"
	"github.com/cobranza/backend/internal/infrastructure/ledgerapi"
	"github.com/cobranza/backend/internal/infrastructure/logger"
	"github.com/cobranza/backend/internal/infrastructure/persistence"
	"github.com/cobranza/backend/internal/infrastructure/telemetry"
	"github.com/cobranza/backend/internal/interfaces/http/handler"
	"github.com/cobranza/backend/internal/interfaces/http/middleware"
	"github.com/cobranza/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/cobranza/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Cobranza Backend API
//	@version		1.0
//	@description	Multi-currency accounts receivable reconciliation API

//	@contact.name	API Support
//	@contact.url	https://github.com/cobranza/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Cobranza Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize the payment journal database
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Telemetry.Enabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	journal := persistence.NewGormPaymentJournalRepository(db.DB)

	// Ledger API client: the engine's source of invoices, rates, partners
	// and the sink for registered payments
	ledgerClient, err := ledgerapi.NewClient(&ledgerapi.Config{
		BaseURL:      cfg.Ledger.BaseURL,
		Timeout:      cfg.Ledger.Timeout,
		MaxIdleConns: cfg.Ledger.MaxIdleConns,
	})
	if err != nil {
		log.Fatal("Failed to create ledger client", zap.Error(err))
	}
	log.Info("Ledger client configured", zap.String("base_url", cfg.Ledger.BaseURL))

	// Rate provider, optionally cached in Redis
	var rateProvider receivables.RateProvider = ledgerClient
	var rateCacheClient *redis.Client
	if cfg.RateCache.Enabled {
		rateCacheClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rateCacheClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unavailable, serving rates without cache", zap.Error(err))
			_ = rateCacheClient.Close()
			rateCacheClient = nil
		} else {
			rateProvider = cache.NewCachedRateProvider(ledgerClient, rateCacheClient, cfg.RateCache.TTL, log)
			log.Info("Rate cache enabled", zap.Duration("ttl", cfg.RateCache.TTL))
		}
	}
	defer func() {
		if rateCacheClient != nil {
			_ = rateCacheClient.Close()
		}
	}()

	// Idempotency store guards against double submission of the same payment
	serviceOpts := []receivables.ServiceOption{
		receivables.WithJournal(journal),
		receivables.WithLogger(log),
	}
	if cfg.Idempotency.Enabled {
		idemStore, err := buildIdempotencyStore(cfg, log)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			_ = idemStore.Close()
		}()
		serviceOpts = append(serviceOpts, receivables.WithIdempotency(idemStore, shared.IdempotencyConfig{
			TTL:     cfg.Idempotency.TTL,
			Enabled: true,
		}))
	}

	service := receivables.NewService(
		ledgerClient,
		ledgerClient,
		rateProvider,
		ledgerClient,
		ledgerClient,
		serviceOpts...,
	)

	// Initialize handlers
	currencyHandler := handler.NewCurrencyHandler(service)
	paymentHandler := handler.NewPaymentHandler(service)
	statementHandler := handler.NewStatementHandler(service)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing - Create spans per request
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Liveness and readiness endpoints (outside API versioning)
	engine.GET("/health", healthHandler(db))
	engine.GET("/ready", readyHandler(db, ledgerClient))

	// Swagger documentation endpoint, gated by config
	swaggerCfg := middleware.SwaggerConfig{
		Enabled:    cfg.Swagger.Enabled,
		AllowedIPs: cfg.Swagger.AllowedIPs,
	}
	engine.GET("/swagger/*any", middleware.SwaggerProtection(swaggerCfg, nil), ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	currencyRoutes := router.NewDomainGroup("currency", "/currencies")
	currencyRoutes.GET("", currencyHandler.ListCurrencies)
	currencyRoutes.GET("/rates/latest", currencyHandler.LatestRates)

	partnerRoutes := router.NewDomainGroup("partner", "/partners")
	partnerRoutes.GET("/:id/methods", paymentHandler.SelectableMethods)

	paymentRoutes := router.NewDomainGroup("payment", "/payments")
	paymentRoutes.POST("/preview", paymentHandler.Preview)
	paymentRoutes.POST("", paymentHandler.Register)

	statementRoutes := router.NewDomainGroup("statement", "/statements")
	statementRoutes.GET("/:partnerId", statementHandler.PartnerStatement)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(currencyRoutes).
		Register(partnerRoutes).
		Register(paymentRoutes).
		Register(statementRoutes).
		Register(systemRoutes)

	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// buildIdempotencyStore creates the configured idempotency store. The redis
// backend falls back to in-memory outside production.
func buildIdempotencyStore(cfg *config.Config, log *zap.Logger) (shared.IdempotencyStore, error) {
	factory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if cfg.Idempotency.Backend == "memory" {
		return factory.CreateInMemoryStore(), nil
	}
	return factory.CreateStore()
}

// healthHandler reports process liveness and journal database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}

// readyHandler reports whether the service can serve traffic: the journal
// database must answer and the upstream ledger must list currencies
func readyHandler(db *persistence.Database, ledger *ledgerapi.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)

		database := "ok"
		if err := db.Ping(); err != nil {
			reqLog.Warn("Readiness check: database unreachable", zap.Error(err))
			database = "error"
		}

		ledgerStatus := "ok"
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if _, err := ledger.Currencies(ctx); err != nil {
			reqLog.Warn("Readiness check: ledger unreachable", zap.Error(err))
			ledgerStatus = "error"
		}

		status := http.StatusOK
		state := "ready"
		if database != "ok" || ledgerStatus != "ok" {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{
			"status":   state,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
			"ledger":   ledgerStatus,
		})
	}
}
