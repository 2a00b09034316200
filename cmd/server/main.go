package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appprov "github.com/bau/backend/internal/application/provisioning"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/infrastructure/auth"
	"github.com/bau/backend/internal/infrastructure/cache"
	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/infrastructure/event"
	"github.com/bau/backend/internal/infrastructure/logger"
	"github.com/bau/backend/internal/infrastructure/migration"
	"github.com/bau/backend/internal/infrastructure/persistence"
	"github.com/bau/backend/internal/infrastructure/telemetry"
	"github.com/bau/backend/internal/infrastructure/tenantdb"
	"github.com/bau/backend/internal/interfaces/http/handler"
	"github.com/bau/backend/internal/interfaces/http/middleware"
	"github.com/bau/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout  = 30 * time.Second
	slowSQLThreshold = 200 * time.Millisecond
)

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
	defer logger.Sync(log)

	ctx := context.Background()

	// Initialize OpenTelemetry providers
	telCfg := telemetry.ConfigFrom(cfg.Telemetry, version)
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer shutdown(log, "tracer provider", tracerProvider.Shutdown)

	meterCfg := telCfg
	meterCfg.Enabled = telCfg.Enabled && cfg.Telemetry.MetricsEnabled
	meterProvider, err := telemetry.NewMeterProvider(ctx, meterCfg, cfg.Telemetry.MetricsInterval, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdown(log, "meter provider", meterProvider.Shutdown)

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer shutdown(log, "logger provider", loggerProvider.Shutdown)

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = loggerProvider.Bridge(log, telCfg.ServiceName, level)

	log.Info("Starting BusinessAsUsual backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Connect to the master catalog
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), slowSQLThreshold)
	dbOpts := []persistence.Option{persistence.WithGormLogger(gormLog)}
	if cfg.Telemetry.DBTraceEnabled {
		dbOpts = append(dbOpts, persistence.WithTracing(cfg.Telemetry.DBLogFullSQL))
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("catalog", cfg.Database.DBName))

	masterSQL, err := db.SQL()
	if err != nil {
		log.Fatal("Failed to access database handle", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := migration.MigrateUp(masterSQL, cfg.Database.MigrationsPath, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	if meterProvider.IsEnabled() {
		unregister, err := telemetry.RegisterDBPoolMetrics(meterProvider.Meter("bau/db"), masterSQL)
		if err != nil {
			log.Warn("Failed to register database pool metrics", zap.Error(err))
		} else {
			defer func() { _ = unregister() }()
		}
	}

	healthChecks := map[string]handler.HealthChecker{"database": masterSQL}

	// Redis is optional; without it the name lock and progress stream stay in-process
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		healthChecks["redis"] = handler.HealthCheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Info("Redis connected successfully", zap.String("addr", cfg.Redis.Addr()))
	}

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)
	lifecycle := appprov.NewLifecycleLogger(log)
	eventBus.Subscribe(lifecycle, lifecycle.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Progress stream. With Redis every instance publishes to the relay and
	// feeds its own SSE clients from it.
	streamOpts := []handler.ProgressStreamOption{
		handler.WithStreamLogger(log),
		handler.WithStreamHeartbeat(cfg.Realtime.Heartbeat),
		handler.WithStreamMaxClients(cfg.Realtime.MaxClients),
	}
	var relay *cache.RedisProgressRelay
	if redisClient != nil {
		relay = cache.NewRedisProgressRelay(redisClient,
			cache.WithRelayChannel(cfg.Realtime.RedisChannel),
			cache.WithRelayPublishTimeout(cfg.Realtime.PublishTimeout),
			cache.WithRelayLogger(log),
		)
		defer func() {
			if err := relay.Close(); err != nil {
				log.Error("Error closing progress relay", zap.Error(err))
			}
		}()
		streamOpts = append(streamOpts, handler.WithStreamSubscriber(relay))
	}
	stream := handler.NewProgressStreamHandler(streamOpts...)
	if err := stream.Start(); err != nil {
		log.Fatal("Failed to start progress stream", zap.Error(err))
	}
	defer stream.Stop()

	var sink provisioning.ProgressSink = stream
	if relay != nil {
		sink = provisioning.MultiProgressSink{stream, relay}
	}

	// Provisioning
	metrics, err := telemetry.NewProvisioningMetrics(meterProvider.Meter("bau/provisioning"))
	if err != nil {
		log.Fatal("Failed to register provisioning metrics", zap.Error(err))
	}

	companyRepo := persistence.NewGormCompanyRepository(db.DB)
	logRepo := persistence.NewGormProvisioningLogRepository(db.DB)

	orchestrator := appprov.NewOrchestrator(appprov.Dependencies{
		Companies: companyRepo,
		Logs:      logRepo,
		Allocator: tenantdb.NewPostgresAllocator(masterSQL, log),
		Scripts:   tenantdb.NewScriptRunner(cfg.Provisioning.BatchSeparator, log),
		Tenants:   persistence.NewConnectionFactory(cfg.Database),
		Seeder:    tenantdb.NewSeeder(log),
		Master:    masterSQL,
		Lock:      cache.NewNameLock(redisClient, log),
		Events:    eventBus,
		Sink:      sink,
		Metrics:   metrics,
	}, cfg.Provisioning, log)
	companyService := appprov.NewCompanyService(companyRepo, logRepo)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
	}

	engine := router.NewEngine(router.EngineOptions{
		Config:      cfg,
		Logger:      log,
		Meter:       meterProvider,
		Tokens:      auth.NewJWTService(cfg.Auth),
		RateLimiter: limiter,
	}, router.Handlers{
		Provisioning: handler.NewProvisioningHandler(orchestrator, log),
		Companies:    handler.NewCompanyHandler(companyService),
		Stream:       stream,
		System:       handler.NewSystemHandler(cfg.App.Name, version, healthChecks),
	})

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

	// SSE clients hold their connections open until the stream stops
	stream.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func shutdown(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
