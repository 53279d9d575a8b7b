// cmd/migrate/main.go
package main

import (
	"context"
	"os"
	"time"

	"leadflow-wallet/internal/config"
	"leadflow-wallet/internal/util"
	"leadflow-wallet/pkg/db"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		util.GetLogger().Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	util.InitLogger(cfg.LogLevel)
	logger := util.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := db.NewPostgresDB(ctx, cfg.DB, logger)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(ctx, database, logger); err != nil {
		logger.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations applied")
}
