// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/broadcast"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/config"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/database"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/handler"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/telemetry"
)

const serviceName = "ekiden-tracker"

type stores struct {
	events  service.EventStore
	teams   service.TeamStore
	records service.RecordStore
	close   func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Configuration & logging ────────────────────────────────────────
	_ = godotenv.Load() // .env is optional
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
	}, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ── 2. Connect to the store ───────────────────────────────────────────
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// ── 3. Broadcast fan-out ──────────────────────────────────────────────
	hub := broadcast.NewHub(logger)
	var publisher broadcast.Publisher = hub
	if cfg.RedisAddr != "" {
		rdb, err := broadcast.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		relay := broadcast.NewRedisRelay(rdb, hub, logger)
		publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("broadcast relay stopped", "error", err)
			}
		}()
		logger.Info("broadcast relay enabled", "redis_addr", cfg.RedisAddr)
	}

	// ── 4. Wire up layers ─────────────────────────────────────────────────
	eventSvc := service.NewEventService(st.events, st.teams)
	recordSvc := service.NewRecordService(st.records, st.events,
		service.WithPublisher(publisher),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)

	router := handler.NewRouter(handler.Deps{
		Events:     eventSvc,
		Records:    recordSvc,
		Hub:        hub,
		Logger:     logger,
		CORSOrigin: cfg.CORSOrigin,
		Limiter:    handler.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		slog.Info("opened sqlite store", "path", cfg.SQLitePath)
		return &stores{
			events:  sqlite.NewEventRepository(db),
			teams:   sqlite.NewTeamRepository(db),
			records: sqlite.NewRecordRepository(db),
			close:   func() { _ = db.Close() },
		}, nil
	default:
		pool, err := database.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database: %w", err)
		}
		slog.Info("connected to postgres", "host", cfg.Postgres.Host, "db", cfg.Postgres.DBName)
		return &stores{
			events:  repository.NewEventRepository(pool),
			teams:   repository.NewTeamRepository(pool),
			records: repository.NewRecordRepository(pool),
			close:   pool.Close,
		}, nil
	}
}
