package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appanalytics "github.com/flora/backend/internal/application/analytics"
	appcatalog "github.com/flora/backend/internal/application/catalog"
	appcurrency "github.com/flora/backend/internal/application/currency"
	appidentity "github.com/flora/backend/internal/application/identity"
	appinventory "github.com/flora/backend/internal/application/inventory"
	appmedia "github.com/flora/backend/internal/application/media"
	apppos "github.com/flora/backend/internal/application/pos"
	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/auth"
	"github.com/flora/backend/internal/infrastructure/cache"
	"github.com/flora/backend/internal/infrastructure/config"
	infracurrency "github.com/flora/backend/internal/infrastructure/currency"
	"github.com/flora/backend/internal/infrastructure/event"
	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/flora/backend/internal/infrastructure/migration"
	"github.com/flora/backend/internal/infrastructure/persistence"
	"github.com/flora/backend/internal/infrastructure/printing"
	"github.com/flora/backend/internal/infrastructure/scheduler"
	"github.com/flora/backend/internal/infrastructure/storage"
	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/flora/backend/internal/interfaces/http/handler"
	"github.com/flora/backend/internal/interfaces/http/middleware"
	"github.com/flora/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// currencyRetention keeps the last known rate around as a stale fallback
const currencyRetention = 30 * 24 * time.Hour

const (
	jobCurrencyRefresh = "currency.refresh"
	jobAnalyticsWarm   = "analytics.warm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Fields:     map[string]string{"app": cfg.App.Name, "env": cfg.App.Env},
		Sampling:   cfg.App.IsProduction(),
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// Telemetry first so the OTLP log core can join the logger
	tel, err := telemetry.Setup(context.Background(), cfg.Telemetry, telemetry.Build{Version: version, Environment: cfg.App.Env}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	if tel.Logs.IsEnabled() {
		core := tel.Logs.ZapCore(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logCfg, logger.WithCore(core)); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Flora backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Fatal("Invalid timezone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}

	if cfg.Migration.AutoMigrate {
		if err := runMigrations(cfg, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Database with zap-backed GORM logging, otelgorm spans and query metrics
	gormOpts := []logger.GormLoggerOption{logger.WithSQL(logger.SQLTruncated)}
	if cfg.Telemetry.DBLogFullSQL {
		gormOpts = append(gormOpts, logger.WithSQL(logger.SQLFull))
	}
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		gormOpts = append(gormOpts, logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), gormOpts...)
	meter := tel.Meter.Meter("github.com/flora/backend")
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithPlugin(newDBInstrumentation(meter, cfg, log)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterPoolMetrics(meter, db.SQL()); err != nil {
		log.Warn("Failed to register connection pool metrics", zap.Error(err))
	}

	// Redis or in-memory caches, locks and idempotency
	backends := cache.NewBackends(cfg.Redis, log)
	defer func() {
		if err := backends.Close(); err != nil {
			log.Error("Error closing cache backends", zap.Error(err))
		}
	}()

	// Repositories
	flowerRepo := persistence.NewGormFlowerRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	adminRepo := persistence.NewGormAdminUserRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)
	supplyRepo := persistence.NewGormSupplyRepository(db.DB)
	txnRepo := persistence.NewGormTransactionRepository(db.DB)
	shiftRepo := persistence.NewGormShiftRepository(db.DB)
	analyticsRepo := persistence.NewGormAnalyticsRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	// Identity
	jwtService := auth.NewJWTService(cfg.JWT)
	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if backends.Client != nil {
		blacklist = auth.NewRedisTokenBlacklist(backends.Client)
	}
	authService := appidentity.NewAuthService(customerRepo, adminRepo, jwtService, blacklist, cfg.POS.PhoneRegion, log)
	customerService := appidentity.NewCustomerService(customerRepo, cfg.POS.PhoneRegion, log)

	// Catalog, inventory and POS
	flowerService := appcatalog.NewFlowerService(flowerRepo, scope, log)
	supplyService := appinventory.NewSupplyService(supplyRepo, scope, log)
	movementService := appinventory.NewMovementService(movementRepo)
	posOpts := apppos.Options{
		LowStockThreshold: cfg.POS.LowStockThreshold,
		AutoOpenShift:     cfg.POS.AutoOpenShift,
		LockTTL:           cfg.POS.LockTTL,
	}
	txnService := apppos.NewTransactionService(txnRepo, shiftRepo, customerRepo, scope, backends.Locker, posOpts, log)
	shiftService := apppos.NewShiftService(shiftRepo, scope, backends.Locker, cfg.POS.LockTTL, log)

	printer, closePrinter := newReceiptPrinter(cfg, location, log)
	defer closePrinter()
	txnService.SetReceiptRenderer(printer)

	// Reports and exchange rates
	analyticsService := appanalytics.NewService(analyticsRepo, shiftRepo, txnRepo, backends.Store, appanalytics.Options{
		LowStockThreshold: cfg.POS.LowStockThreshold,
		TopFlowers:        cfg.POS.TopFlowers,
		CacheTTL:          cfg.POS.AnalyticsCacheTTL,
		Location:          location,
	}, log)
	currencyService := appcurrency.NewService(
		infracurrency.NewHTTPProvider(cfg.Currency.BaseURL, cfg.Currency.Timeout),
		infracurrency.NewStoreRateCache(backends.Store, currencyRetention),
		cfg.Currency.Target, cfg.Currency.CacheTTL, log,
	)

	// Flower images
	mediaService := newMediaService(cfg, flowerRepo, scope, log)

	// Event bus and subscribers
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))
	eventBus.Subscribe(event.NewIdempotentHandler(
		appanalytics.NewCacheInvalidationHandler(analyticsService, log), backends.Idempotency, cfg.POS.IdempotencyTTL, log))

	lowStock := appinventory.NewLowStockHandler(log)
	if tel.Meter.IsEnabled() {
		businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:             meter,
			Logger:            log,
			StockProvider:     telemetry.NewGormStockLevelsProvider(db.DB),
			LowStockThreshold: cfg.POS.LowStockThreshold,
		})
		if err != nil {
			log.Fatal("Failed to create business metrics", zap.Error(err))
		}
		businessMetrics.Start(context.Background())
		defer businessMetrics.Stop()

		lowStock.WithRecorder(businessMetrics)
		eventBus.Subscribe(apppos.NewMetricsHandler(businessMetrics))
	}
	eventBus.Subscribe(event.NewIdempotentHandler(lowStock, backends.Idempotency, cfg.POS.IdempotencyTTL, log))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	flowerService.SetEventPublisher(eventBus)
	supplyService.SetEventPublisher(eventBus)
	txnService.SetEventPublisher(eventBus)
	shiftService.SetEventPublisher(eventBus)
	authService.SetEventPublisher(eventBus)
	customerService.SetEventPublisher(eventBus)
	if mediaService != nil {
		mediaService.SetEventPublisher(eventBus)
	}

	// Background jobs
	if cfg.Scheduler.Enabled {
		stopJobs := startScheduler(cfg, backends.Locker, currencyService, analyticsService, log)
		defer stopJobs()
	}

	// HTTP handlers
	handlers := router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Customers: handler.NewCustomerHandler(customerService, txnService),
		Flowers:   handler.NewFlowerHandler(flowerService, mediaService),
		Inventory: handler.NewInventoryHandler(supplyService, movementService),
		POS:       handler.NewPOSHandler(txnService),
		Shifts:    handler.NewShiftHandler(shiftService),
		Analytics: handler.NewAnalyticsHandler(analyticsService),
		Currency:  handler.NewCurrencyHandler(currencyService),
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engineCfg := router.EngineConfig{
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Security:       middleware.DefaultSecurityConfig(),
		CORS: middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		BodyLimits: middleware.BodyLimits{JSON: cfg.HTTP.MaxBodySize, Upload: cfg.HTTP.MaxUploadSize},
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tel.Tracer.IsEnabled(),
		},
		Profiling: tel.Profiler.IsEnabled(),
	}
	if tel.Meter.IsEnabled() {
		engineCfg.Meter = meter
	}

	var loginLimit gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		engineCfg.Limiter = newLimiter(backends, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, "api")
		loginLimit = middleware.RateLimit(
			newLimiter(backends, cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow, "login"), log)
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
			zap.Int("login_requests", cfg.HTTP.AuthRateLimitRequests),
		)
	}

	engine := router.NewEngine(engineCfg, log)

	// Health check endpoint outside the API prefix
	health := handler.NewHealthHandler(version, map[string]handler.HealthCheck{
		"database": db.Ping,
		"cache":    backends.Ping,
	})
	engine.GET("/health", health.Health)

	authCfg := middleware.AuthConfig{
		Customer:   jwtService.CustomerVerifier(),
		Admin:      jwtService.AdminVerifier(),
		Blacklist:  blacklist,
		Principals: authService,
		Logger:     log,
	}
	guards := router.Guards{
		Auth:         middleware.DualAuth(authCfg),
		OptionalAuth: middleware.OptionalDualAuth(authCfg),
		Admin:        middleware.RequireAdmin(),
		Login:        loginLimit,
	}
	router.NewRouter(engine).Register(router.Groups(handlers, guards)...).Setup()

	// Create HTTP server
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
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// runMigrations applies pending migrations on a dedicated connection, which
// golang-migrate closes when done
func runMigrations(cfg *config.Config, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	var m *migration.Migrator
	if cfg.Migration.Path != "" {
		m, err = migration.New(sqlDB, cfg.Migration.Path, log)
	} else {
		m, err = migration.NewEmbedded(sqlDB, log)
	}
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

func newDBInstrumentation(meter metric.Meter, cfg *config.Config, log *zap.Logger) *telemetry.DBInstrumentation {
	instr, err := telemetry.NewDBInstrumentation(meter, telemetry.DBConfig{
		Tracing:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		DBName:             cfg.Database.DBName,
	}, log)
	if err != nil {
		log.Fatal("Failed to create database instrumentation", zap.Error(err))
	}
	return instr
}

// newReceiptPrinter builds the HTML receipt printer, with chromedp PDF output when printing is enabled
func newReceiptPrinter(cfg *config.Config, location *time.Location, log *zap.Logger) (*printing.ReceiptPrinter, func()) {
	var pdf printing.PDFRenderer
	if cfg.Printing.Enabled {
		pdf = printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: cfg.Printing.Timeout,
			RemoteURL:      cfg.Printing.RemoteURL,
			ExecPath:       cfg.Printing.ExecPath,
			NoSandbox:      true,
			Logger:         log,
		})
	}
	printer, err := printing.NewReceiptPrinter(
		printing.NewTemplateEngine(printing.WithLocation(location)), pdf, cfg.App.Name)
	if err != nil {
		log.Fatal("Failed to create receipt printer", zap.Error(err))
	}
	return printer, func() {
		if err := printer.Close(); err != nil {
			log.Error("Error closing receipt printer", zap.Error(err))
		}
	}
}

// newMediaService wires S3 storage when enabled. Without it upload URLs are
// unavailable and nil is returned.
func newMediaService(cfg *config.Config, flowers *persistence.GormFlowerRepository, scope *persistence.GormTransactionScope, log *zap.Logger) *appmedia.Service {
	if !cfg.Storage.Enabled {
		log.Info("Object storage disabled, image uploads unavailable")
		return nil
	}
	store, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		log.Fatal("Failed to create object storage", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		log.Warn("Bucket check failed", zap.String("bucket", store.Bucket()), zap.Error(err))
	}
	return appmedia.NewService(flowers, scope, store, storage.NewHTTPDownloader(30*time.Second),
		cfg.Storage.PublicBaseURL, cfg.Storage.Prefix, log)
}

// startScheduler runs the exchange rate refresh and report warmup on intervals
func startScheduler(cfg *config.Config, locker shared.Locker, currencyService *appcurrency.Service, analyticsService *appanalytics.Service, log *zap.Logger) func() {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Workers:       cfg.Scheduler.Workers,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
	}, log)

	sched.Register(jobCurrencyRefresh, scheduler.Exclusive(locker, jobCurrencyRefresh, cfg.Scheduler.JobTimeout,
		func(ctx context.Context) error {
			_, err := currencyService.Refresh(ctx)
			return err
		}))
	sched.Register(jobAnalyticsWarm, scheduler.Exclusive(locker, jobAnalyticsWarm, cfg.Scheduler.JobTimeout,
		func(ctx context.Context) error {
			if err := analyticsService.Invalidate(ctx); err != nil {
				return err
			}
			if _, err := analyticsService.Dashboard(ctx); err != nil {
				return err
			}
			if _, err := analyticsService.Stock(ctx); err != nil {
				return err
			}
			_, err := analyticsService.Sales(ctx, "week")
			return err
		}))

	trigger := scheduler.NewIntervalTrigger(sched, log,
		scheduler.Entry{Task: jobCurrencyRefresh, Every: cfg.Scheduler.CurrencyRefresh, RunOnStart: true},
		scheduler.Entry{Task: jobAnalyticsWarm, Every: cfg.Scheduler.ReportWarmup},
	)

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start job trigger", zap.Error(err))
	}

	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := trigger.Stop(stopCtx); err != nil {
			log.Warn("Error stopping job trigger", zap.Error(err))
		}
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn("Error stopping scheduler", zap.Error(err))
		}
	}
}

func newLimiter(backends *cache.Backends, limit int, window time.Duration, name string) middleware.Limiter {
	if backends.Client != nil {
		return middleware.NewRedisRateLimiter(backends.Client, limit, window, name)
	}
	return middleware.NewRateLimiter(limit, window)
}
