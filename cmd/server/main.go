// Package main implements the entry point for the lesson analysis API
// server: the task queue, the dispatch scheduler and the HTTP surface
// through which the main application queues analysis work and reads
// results.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lessonworks/analysis-api/internal/config"
	"github.com/lessonworks/analysis-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"poll_interval_seconds", cfg.Worker.PollIntervalSeconds,
		"max_concurrent", cfg.Worker.MaxConcurrent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer app.cleanup()

	return app.serve(ctx)
}
