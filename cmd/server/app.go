package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lessonworks/analysis-api/internal/config"
	"github.com/lessonworks/analysis-api/internal/events"
	"github.com/lessonworks/analysis-api/internal/platform/gemini"
	"github.com/lessonworks/analysis-api/internal/platform/health"
	"github.com/lessonworks/analysis-api/internal/platform/postgres"
	"github.com/lessonworks/analysis-api/internal/platform/video"
	"github.com/lessonworks/analysis-api/internal/service"
	"github.com/lessonworks/analysis-api/internal/service/auth"
	"github.com/lessonworks/analysis-api/internal/task"
)

// application holds the composed dependency graph. Everything is wired
// explicitly in newApplication so the construction order and ownership
// read top to bottom.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	healthMonitor   *health.Monitor
	analysisService *service.AnalysisService
	jwtService      auth.JWTService
	emitter         *events.InMemoryEventEmitter
	scheduler       *task.Scheduler
}

// newApplication connects the database, applies migrations, and builds the
// stores, analyzers, services and the dispatch scheduler.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	taskStore := postgres.NewPostgresTaskStore(db, logger)
	resultStore := postgres.NewPostgresAnalysisResultStore(db, logger)
	lessonReader := postgres.NewPostgresLessonReader(db, logger)

	healthMonitor := health.NewMonitor(health.Config{
		ModelsEndpoint: cfg.Inference.ModelsEndpoint,
		APIKey:         cfg.Inference.GeminiAPIKey,
		ProbeTimeout:   time.Duration(cfg.Inference.ProbeTimeoutSeconds) * time.Second,
		CacheTTL:       time.Duration(cfg.Inference.HealthCacheTTLMinutes) * time.Minute,
	}, logger)

	contentAnalyzer, err := gemini.NewAnalyzer(ctx, logger, cfg.Inference)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create content analyzer: %w", err)
	}
	videoClient := video.NewClient(cfg.Video, logger)

	processor, err := task.NewProcessor(
		taskStore, resultStore, lessonReader, contentAnalyzer, videoClient, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create task processor: %w", err)
	}

	scheduler, err := task.NewScheduler(taskStore, healthMonitor, processor, cfg.Worker, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create dispatch scheduler: %w", err)
	}

	analysisService, err := service.NewAnalysisService(taskStore, resultStore, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create analysis service: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	// Lesson webhooks flow through the emitter; the analysis service
	// reacts by queueing the appropriate task.
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(analysisService)

	return &application{
		config:          cfg,
		logger:          logger,
		db:              db,
		healthMonitor:   healthMonitor,
		analysisService: analysisService,
		jwtService:      jwtService,
		emitter:         emitter,
		scheduler:       scheduler,
	}, nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
