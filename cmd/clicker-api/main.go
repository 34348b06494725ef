package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clicker/internal/api"
	"clicker/internal/config"
	"clicker/internal/db"
	"clicker/internal/game"
	"clicker/internal/save"
	"clicker/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	engine := game.NewEngine(game.DefaultRegistry(), logger)

	var store save.Store
	if cfg.DatabaseURL != "" {
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
		store = save.NewPGStore(pool, engine)
		logger.Info("using postgres save store")
	} else {
		fs, err := save.NewFileStore(cfg.SaveDir, engine)
		if err != nil {
			logger.Error("file store init failed", "err", err)
			os.Exit(1)
		}
		store = fs
		logger.Info("using file save store", "dir", fs.Dir())
	}

	sessions := session.NewService(store, engine, session.RealClock{}, logger)
	server := api.New(logger, sessions)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go autosave(ctx, logger, sessions, cfg.AutosaveCheck)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("clicker api listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := sessions.Close(saveCtx); err != nil {
		logger.Error("final save failed", "err", err)
	}
	logger.Info("clicker api stopped")
}

func autosave(ctx context.Context, logger *slog.Logger, sessions *session.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Flush(ctx)
			if err != nil {
				logger.Error("autosave failed", "err", err)
			}
			if n > 0 {
				logger.Debug("autosave complete", "games", n)
			}
		}
	}
}
