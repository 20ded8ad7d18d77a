package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/f5ttsapi/internal/api"
	"github.com/nikhilbhutani/f5ttsapi/internal/config"
	"github.com/nikhilbhutani/f5ttsapi/internal/engine"
	"github.com/nikhilbhutani/f5ttsapi/internal/logging"
	"github.com/nikhilbhutani/f5ttsapi/internal/queue"
	"github.com/nikhilbhutani/f5ttsapi/internal/synthesis"
	"github.com/nikhilbhutani/f5ttsapi/internal/tempfile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	dir, err := tempfile.NewDir(cfg.Files.TempDir)
	if err != nil {
		slog.Error("failed to prepare temp dir", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Cleanup goes through Redis when asked to and Redis answers; otherwise in process.
	var (
		remover tempfile.Remover
		rdb     *redis.Client
		qc      *queue.Client
		janitor *tempfile.Janitor
	)
	if cfg.Cleanup.Backend == config.CleanupBackendAsynq {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, cleaning up temp files in process", "error", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			qc = queue.NewClient(cfg.Redis)
			remover = qc
		}
	}
	if remover == nil {
		janitor = tempfile.NewJanitor(dir, cfg.Cleanup.SweepInterval, cfg.Cleanup.MaxAge, logger)
		remover = janitor
	}

	handle := engine.NewHandle()
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, cfg.Engine.InitTimeout)
		defer cancel()

		start := time.Now()
		slog.Info("initializing engine", "backend", cfg.Engine.Backend, "model", cfg.Engine.Model)
		err := handle.Init(initCtx, func(ctx context.Context) (engine.Engine, error) {
			return engine.New(ctx, cfg.Engine, logger)
		})
		if err != nil {
			slog.Error("engine failed to initialize", "error", err)
			return
		}
		e, _ := handle.Get()
		slog.Info("engine ready", "engine", e.Name(), "device", e.Device(), "elapsed", time.Since(start))
	}()

	svc := synthesis.NewService(handle, dir, remover, synthesis.Config{
		CleanupDelay: cfg.Cleanup.Delay,
		FetchTimeout: cfg.Files.FetchTimeout,
	}, logger)

	router := api.NewRouter(cfg, handle, svc, rdb, logger)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "temp_dir", dir.Path(), "cleanup", cfg.Cleanup.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	router.Close()

	if janitor != nil {
		janitor.Close()
	}
	if qc != nil {
		if err := qc.Close(); err != nil {
			slog.Warn("queue client close", "error", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	slog.Info("server stopped")
}
