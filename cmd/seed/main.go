// Command seed loads a YAML event definition into the configured store.
//
//	seed -f event.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/config"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/database"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/seed"
	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/service"
)

func main() {
	path := flag.String("f", "seed.yaml", "seed file to load")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), *path, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, logger *slog.Logger) error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	file, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	var svc *service.EventService
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		svc = service.NewEventService(sqlite.NewEventRepository(db), sqlite.NewTeamRepository(db))
	default:
		pool, err := database.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.MigratePostgres(ctx, pool); err != nil {
			return err
		}
		svc = service.NewEventService(repository.NewEventRepository(pool), repository.NewTeamRepository(pool))
	}

	event, err := seed.Apply(ctx, svc, file)
	if err != nil {
		return err
	}
	logger.Info("seeded event",
		"event_id", event.ID,
		"name", event.Name,
		"checkpoints", len(event.Checkpoints),
		"teams", len(event.Teams),
	)
	return nil
}
