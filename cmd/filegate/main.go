// Command filegate starts the verified file delivery service.
//
// The service catalogs files queued by admins via POST /api/v1/uploads,
// answers delivery requests at POST /api/v1/deliveries with either the file
// or a time-limited verification link, resolves followed links at
// GET /verify, and serves rate-limited catalog search at GET /api/v1/search.
// Liveness and readiness probes are at /health/live and /health/ready.
//
// Usage:
//
//	go run ./cmd/filegate [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/api"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/auditlog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/cleanup"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/delivery"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/messaging"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/shortener"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/internal/verify"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting filegate", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	// Catalog store.
	var store catalog.Store
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore, err := catalog.NewPostgresStore(ctx, db)
		if err != nil {
			slog.Error("failed to initialize catalog schema", "error", err)
			os.Exit(1)
		}
		store = pgStore
		checker.Register("postgres", pingCheck(db.Ping))
		slog.Info("connected to postgres", "database", cfg.Postgres.Database)
	default:
		store = catalog.NewMemoryStore()
		slog.Info("using in-memory catalog store")
	}

	// Rate limiter.
	var limiter ratelimit.Limiter
	switch cfg.RateLimits.Backend {
	case "redis":
		rdb, err := redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimits.Actions)
		checker.Register("redis", pingCheck(rdb.Ping))
		slog.Info("using redis rate limiter", "addr", cfg.Redis.Addr)
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimits.Actions)
		slog.Info("using in-memory rate limiter")
	}

	// Audit event pipeline.
	var audit *auditlog.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AuditEvents)
		defer producer.Close()
		audit = auditlog.NewCollector(producer, cfg.Audit.BatchSize, cfg.Audit.FlushInterval, m)
		audit.Start(ctx)
		slog.Info("audit collector enabled", "topic", cfg.Kafka.Topics.AuditEvents)
	}

	messenger := messaging.NewLogMessenger()
	short := shortener.New(cfg.Shortener.APIURL, cfg.Shortener.APIKey, cfg.Shortener.Timeout, m)
	ledger := verify.NewLedger(cfg.Verification.TokenTTL, cfg.Verification.WindowDuration, m)

	scheduler := cleanup.NewScheduler(messenger, store, cfg.Cleanup.Delay, m)
	if err := scheduler.Restore(ctx); err != nil {
		slog.Error("cleanup job recovery failed", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	var adminID int64
	if len(cfg.Bot.AdminIDs) > 0 {
		adminID = cfg.Bot.AdminIDs[0]
	}
	processor := ingest.NewProcessor(store, short, cfg.Bot.Username, audit)
	queue := ingest.NewQueue(processor, messenger, adminID, cfg.Ingest.BatchSize, cfg.Ingest.InterBatchDelay, m)
	defer queue.Shutdown()

	orchestrator := delivery.NewOrchestrator(store, ledger, messenger, scheduler, short, audit, cfg.Bot.Username, m)

	// Periodic sweep keeps verification stats honest for tokens whose
	// redirect never arrived.
	go func() {
		interval := cfg.Verification.SweepInterval
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ledger.SweepExpired()
			case <-ctx.Done():
				return
			}
		}
	}()

	h := api.NewHandler(store, queue, orchestrator, ledger, limiter, audit, cfg.Bot.AdminIDs, m)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var handler http.Handler = mux
	handler = middleware.Timeout(cfg.Server.WriteTimeout)(handler)
	handler = middleware.Metrics(m)(handler)
	handler = middleware.RequestID()(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("filegate listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if audit != nil {
		audit.Close()
	}
	slog.Info("filegate stopped")
}

// pingCheck adapts a Ping method into a health.Check.
func pingCheck(ping func(context.Context) error) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if err := ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}
