package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/f5ttsapi/internal/config"
	"github.com/nikhilbhutani/f5ttsapi/internal/logging"
	"github.com/nikhilbhutani/f5ttsapi/internal/queue"
	"github.com/nikhilbhutani/f5ttsapi/internal/queue/workers"
	"github.com/nikhilbhutani/f5ttsapi/internal/tempfile"
)

const concurrency = 4

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

	redisOpt := queue.RedisOpt(cfg.Redis)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue.QueueCleanup: 1,
		},
		Logger: newAsynqLogger(logger),
	})

	registry := queue.NewHandlersRegistry()
	workers.NewCleanupWorker(dir, logger).Register(registry)

	sweepTask, err := queue.NewTempfileSweepTask(cfg.Cleanup.MaxAge)
	if err != nil {
		slog.Error("failed to build sweep task", "error", err)
		os.Exit(1)
	}

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: newAsynqLogger(logger)})
	entryID, err := scheduler.Register(cfg.Cleanup.SweepCron, sweepTask, asynq.Queue(queue.QueueCleanup), asynq.MaxRetry(1))
	if err != nil {
		slog.Error("failed to register sweep schedule", "cron", cfg.Cleanup.SweepCron, "error", err)
		os.Exit(1)
	}

	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	slog.Info("starting worker",
		"concurrency", concurrency,
		"task_types", registry.Types(),
		"temp_dir", dir.Path(),
		"sweep", cfg.Cleanup.SweepCron,
		"sweep_entry", entryID,
	)
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	srv.Shutdown()
	slog.Info("worker stopped")
}
