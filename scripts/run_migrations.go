package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down] [dir]")
	}

	direction := database.Direction(os.Args[1])
	if !direction.Valid() {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := database.Migrate(context.Background(), db, dir, direction)
	for _, name := range applied {
		logger.Info("migration applied", zap.String("file", name), zap.String("direction", string(direction)))
	}
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete", zap.Int("count", len(applied)), zap.String("direction", string(direction)))
}
