package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/craftmarket/api/internal/di"
	"github.com/craftmarket/api/internal/events"
	"github.com/craftmarket/api/internal/handlers"
	"github.com/craftmarket/api/internal/platform/config"
	"github.com/craftmarket/api/internal/platform/idempotency"
	"github.com/craftmarket/api/internal/platform/observability"
	"github.com/craftmarket/api/internal/repositories/postgres"
)

const migrationsDir = "migrations"

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if err := runMigrations(cfg, logger.Named("migrations")); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	provider, err := postgres.NewProvider(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("failed to initialise postgres pool", zap.Error(err))
	}
	registry, err := postgres.NewRegistry(provider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("postgres close error", zap.Error(err))
		}
	}()

	deps := di.ContainerDeps{
		Registry: registry,
		Logger:   logger,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, closePublisher, err := events.NewKafkaNotificationPublisher(cfg.Kafka, logger.Named("events"))
		if err != nil {
			logger.Fatal("failed to initialise kafka publisher", zap.Error(err))
		}
		defer closePublisher()
		deps.Events = publisher
	} else {
		logger.Warn("kafka brokers not configured; notifications disabled")
	}

	container, err := di.NewContainer(ctx, cfg, deps)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}

	orderHandlers, err := handlers.NewOrderHandlers(container.Services.Orders)
	if err != nil {
		logger.Fatal("failed to build order handlers", zap.Error(err))
	}
	quoteHandlers, err := handlers.NewQuoteHandlers(container.Services.Quotes)
	if err != nil {
		logger.Fatal("failed to build quote handlers", zap.Error(err))
	}
	healthHandlers, err := handlers.NewHealthHandlers(container.Services.System)
	if err != nil {
		logger.Fatal("failed to build health handlers", zap.Error(err))
	}

	idempotencyStore := idempotency.NewMemoryStore()
	router := handlers.NewRouter(
		handlers.WithLogger(logger.Named("http")),
		handlers.WithOrderHandlers(orderHandlers),
		handlers.WithQuoteHandlers(quoteHandlers),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithIdempotencyMiddleware(idempotency.Middleware(
			idempotencyStore,
			idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
		)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(2)
	go func() {
		defer sweepWG.Done()
		runQuoteExpirySweep(sweepCtx, container, cfg.Quotes.SweepInterval, logger.Named("quotes"))
	}()
	go func() {
		defer sweepWG.Done()
		runIdempotencyCleanup(sweepCtx, idempotencyStore, logger.Named("idempotency"))
	}()

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("craftmarket api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func runMigrations(cfg config.Config, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	goose.SetLogger(observability.NewPrintfAdapter(logger))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose.SetDialect: %w", err)
	}
	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("goose.Up: %w", err)
	}
	return nil
}

func runIdempotencyCleanup(ctx context.Context, store *idempotency.MemoryStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := store.CleanupExpired(ctx, time.Now().UTC(), 1000)
			if err != nil {
				logger.Error("idempotency cleanup error", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info("idempotency cleanup removed records", zap.Int("count", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

// runQuoteExpirySweep periodically flips lapsed pending quotes to expired so
// artisans stop seeing stale requests even when nobody reads them.
func runQuoteExpirySweep(ctx context.Context, container *di.Container, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, time.Minute)
			expired, err := container.Services.Quotes.ExpireOpen(runCtx)
			cancel()
			if err != nil {
				logger.Error("quote expiry sweep error", zap.Error(err))
				continue
			}
			if expired > 0 {
				logger.Info("quote expiry sweep completed", zap.Int64("expired", expired))
			}
		case <-ctx.Done():
			return
		}
	}
}
