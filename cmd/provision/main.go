package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	appprov "github.com/bau/backend/internal/application/provisioning"
	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/infrastructure/auth"
	"github.com/bau/backend/internal/infrastructure/cache"
	"github.com/bau/backend/internal/infrastructure/config"
	"github.com/bau/backend/internal/infrastructure/event"
	"github.com/bau/backend/internal/infrastructure/logger"
	"github.com/bau/backend/internal/infrastructure/persistence"
	"github.com/bau/backend/internal/infrastructure/tenantdb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "tenant":
		os.Exit(runTenant(os.Args[2:]))
	case "issue-token":
		os.Exit(runIssueToken(os.Args[2:]))
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runTenant(args []string) int {
	fs := flag.NewFlagSet("tenant", flag.ExitOnError)
	var (
		name     = fs.String("name", "", "Company name (required)")
		email    = fs.String("email", "", "Administrator email (required)")
		plan     = fs.String("plan", "", "Billing plan")
		modules  = fs.String("modules", "", "Comma-separated list of enabled modules")
		logLevel = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	_ = fs.Parse(args)

	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "-name and -email are required")
		fs.Usage()
		return 2
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load configuration", zap.Error(err))
		return 1
	}

	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(
		logger.NewGormLogger(log, logger.MapGormLogLevel(*logLevel), 0),
	))
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return 1
	}
	defer db.Close()

	masterSQL, err := db.SQL()
	if err != nil {
		log.Error("Failed to access database handle", zap.Error(err))
		return 1
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Error("Failed to connect to Redis", zap.Error(err))
			return 1
		}
		defer redisClient.Close()
	}

	// Progress goes to the terminal and, with Redis, to the servers' SSE clients
	var sink provisioning.ProgressSink = consoleSink{log: log}
	if redisClient != nil {
		relay := cache.NewRedisProgressRelay(redisClient,
			cache.WithRelayChannel(cfg.Realtime.RedisChannel),
			cache.WithRelayPublishTimeout(cfg.Realtime.PublishTimeout),
			cache.WithRelayLogger(log),
		)
		defer relay.Close()
		sink = provisioning.MultiProgressSink{sink, relay}
	}

	bus := event.NewInMemoryEventBus(log)
	lifecycle := appprov.NewLifecycleLogger(log)
	bus.Subscribe(lifecycle, lifecycle.EventTypes()...)

	orchestrator := appprov.NewOrchestrator(appprov.Dependencies{
		Companies: persistence.NewGormCompanyRepository(db.DB),
		Logs:      persistence.NewGormProvisioningLogRepository(db.DB),
		Allocator: tenantdb.NewPostgresAllocator(masterSQL, log),
		Scripts:   tenantdb.NewScriptRunner(cfg.Provisioning.BatchSeparator, log),
		Tenants:   persistence.NewConnectionFactory(cfg.Database),
		Seeder:    tenantdb.NewSeeder(log),
		Master:    masterSQL,
		Lock:      cache.NewNameLock(redisClient, log),
		Events:    bus,
		Sink:      sink,
	}, cfg.Provisioning, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := orchestrator.ProvisionTenant(ctx, provisioning.ProvisioningRequest{
		CompanyName: *name,
		AdminEmail:  *email,
		BillingPlan: *plan,
		Modules:     splitModules(*modules),
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Success {
		return 1
	}
	return 0
}

func runIssueToken(args []string) int {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	operator := fs.String("operator", "", "Operator name recorded in the token subject (required)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*operator) == "" {
		fmt.Fprintln(os.Stderr, "-operator is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if cfg.Auth.Secret == "" {
		fmt.Fprintln(os.Stderr, "auth.secret is not configured")
		return 1
	}

	token, err := auth.NewJWTService(cfg.Auth).Issue(*operator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		return 1
	}

	out, _ := json.MarshalIndent(token, "", "  ")
	fmt.Println(string(out))
	return 0
}

// splitModules turns "crm, hr,,payroll" into [crm hr payroll]
func splitModules(raw string) []string {
	var modules []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modules = append(modules, m)
		}
	}
	return modules
}

// consoleSink logs progress events
type consoleSink struct {
	log *zap.Logger
}

func (s consoleSink) Broadcast(_ context.Context, event string, payload any) error {
	p, ok := payload.(provisioning.ProgressEvent)
	if !ok {
		s.log.Info("Progress", zap.String("event", event), zap.Any("payload", payload))
		return nil
	}
	s.log.Info("Progress",
		zap.String("step", p.Step),
		zap.String("status", string(p.Status)),
		zap.String("message", p.Message),
	)
	return nil
}

func printUsage() {
	fmt.Println(`BusinessAsUsual provisioning CLI

Usage:
  provision tenant -name <company> -email <admin> [-plan <plan>] [-modules a,b,c]
  provision issue-token -operator <name>

Commands:
  tenant        Provision a tenant database and record it in the master catalog
  issue-token   Print a bearer token for the provisioning API

Configuration is read from config.toml and BAU_* environment variables.`)
}
