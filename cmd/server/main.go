package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/config"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/logging"
	"hrportal-backend/internal/ratelimit"
	"hrportal-backend/internal/server"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, false, 0).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.IsDevelopment(), cfg.LogLevel)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg, logger)
	if err != nil {
		logger.Error("database startup failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// rate limited routes answer 500 until redis is back
		logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "error", err)
	}

	app := server.NewApp(server.Deps{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Users:   database.NewUserStore(db),
		Limiter: ratelimit.New(rdb, ""),
		Audit:   audit.NewRecorder(db, logger),
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.HTTPPort, "env", cfg.AppEnv)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
