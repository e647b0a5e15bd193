package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/erp/connector/internal/application/sync"
	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/infrastructure/cache"
	"github.com/erp/connector/internal/infrastructure/config"
	"github.com/erp/connector/internal/infrastructure/logger"
	"github.com/erp/connector/internal/infrastructure/magento"
	"github.com/erp/connector/internal/infrastructure/notify"
	"github.com/erp/connector/internal/infrastructure/persistence"
	"github.com/erp/connector/internal/infrastructure/scheduler"
	"github.com/erp/connector/internal/interfaces/http/handler"
	"github.com/erp/connector/internal/interfaces/http/middleware"
	"github.com/erp/connector/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting connector",
		zap.String("name", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// ---------------------------------------------------------------
	// Database
	// ---------------------------------------------------------------

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	queueRepo := persistence.NewGormQueueRepository(db.DB)
	logBookRepo := persistence.NewGormLogBookRepository(db.DB)
	instanceRepo := persistence.NewGormInstanceRepository(db.DB)
	cursorRepo := persistence.NewGormCursorRepository(db.DB)
	activities := persistence.NewGormActivityScheduler(db.DB)

	// ---------------------------------------------------------------
	// Application services
	// ---------------------------------------------------------------

	dedupStore, err := cache.NewDedupStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithTTL(cfg.Remote.DedupTTL),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create dedup store", zap.Error(err))
	}
	if closer, ok := dedupStore.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("Failed to close dedup store", zap.Error(err))
			}
		}()
	}

	notifier := notify.NewInMemoryBus(log)
	gateway := magento.NewGateway(cfg.Remote.RequestTimeout)

	processors := syncqueue.NewProcessorRegistry()
	if err := processors.Register(appsync.NewStockExportProcessor(gateway)); err != nil {
		log.Fatal("Failed to register stock export processor", zap.Error(err))
	}

	queueManager := appsync.NewQueueManager(queueRepo, dedupStore, notifier, log)
	escalation := appsync.NewEscalationController(queueRepo, activities, notifier, log)
	runner := appsync.NewBatchRunner(
		appsync.BatchRunnerConfig{SafetyMargin: cfg.Scheduler.SafetyMargin},
		queueRepo, logBookRepo, processors, escalation, notifier, log,
	)
	ingestor := appsync.NewIngestor(gateway, cursorRepo, queueManager, notifier, cfg.Scheduler.SafetyMargin, log)
	operator := appsync.NewOperatorService(queueRepo, logBookRepo, instanceRepo, runner, log)

	// ---------------------------------------------------------------
	// Scheduler
	// ---------------------------------------------------------------

	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.Config{
		Enabled:      cfg.Scheduler.Enabled,
		RunInterval:  cfg.Scheduler.RunInterval,
		SafetyMargin: cfg.Scheduler.SafetyMargin,
		MaxParallel:  cfg.Scheduler.MaxParallel,
	}, instanceRepo, ingestor, runner, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := syncScheduler.Stop(ctx); err != nil {
			log.Error("Failed to stop sync scheduler", zap.Error(err))
		}
	}()

	// ---------------------------------------------------------------
	// HTTP server
	// ---------------------------------------------------------------

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerMin, time.Minute)
	defer rateLimiter.Stop()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.RateLimit(rateLimiter),
	)

	engine.GET("/health", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(handler.NewQueueHandler(operator)).
		Register(handler.NewInstanceHandler(instanceRepo, ingestor, syncScheduler)).
		Register(handler.NewSystemHandler(db)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
