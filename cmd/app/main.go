package main

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nearhub/chatd/internal/config"
	"github.com/nearhub/chatd/internal/repository/cache"
	"github.com/nearhub/chatd/internal/repository/database"
	"github.com/nearhub/chatd/internal/server"
	"github.com/pressly/goose/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("Database inited")

	redisClient, err := cache.Connect(ctx, cfg.Redis.Addr())
	if err != nil {
		log.Fatal(err)
	}
	slog.Info("Redis inited")

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal("failed to set dialect (migrations): ", err)
	}

	migrationsPath := filepath.Join("internal", "repository", "database", "migrations")
	if err := goose.Up(db.DB, migrationsPath); err != nil {
		log.Fatal("failed to migrate up: ", err)
	}
	slog.Info("Migrations completed")

	srv := server.NewServer(cfg, db, redisClient)
	if err := srv.Run(":" + cfg.App.Port); err != nil {
		slog.Error("Server stopped", "error", err)
	}
}
