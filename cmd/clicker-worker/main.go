package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clicker/internal/config"
	"clicker/internal/db"
	"clicker/internal/game"
	"clicker/internal/save"
	"clicker/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	engine := game.NewEngine(game.DefaultRegistry(), logger)
	w := worker.New(save.NewPGStore(pool, engine), engine, logger)

	if cfg.RunOnce {
		rep, err := w.RunOnce(ctx, cfg.TickEvery)
		if err != nil {
			logger.Error("offline pass failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "scanned", rep.Scanned, "advanced", rep.Advanced, "skipped", rep.Skipped)
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("worker started", "tick_every", cfg.TickEvery.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			rep, err := w.RunOnce(ctx, cfg.TickEvery)
			if err != nil {
				logger.Error("offline pass failed", "err", err)
				continue
			}
			logger.Info("offline pass complete", "scanned", rep.Scanned, "advanced", rep.Advanced, "skipped", rep.Skipped)
		}
	}
}
