// Command migrate creates the PostgreSQL snapshot schema. It uses the same configuration
// as the service and is safe to run repeatedly.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-snapshot-service/internal/config"
	"github.com/kjstillabower/weather-snapshot-service/internal/observability"
	"github.com/kjstillabower/weather-snapshot-service/internal/repository"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal("DATABASE_URL or storage.postgres.dsn required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.OpenPostgres(ctx, repository.PostgresConfig{DSN: cfg.PostgresDSN})
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	repo := repository.NewPostgresRepository(db)
	defer func() { _ = repo.Close() }()

	if err := repo.Migrate(ctx); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("schema up to date")
}
