package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/recall-api/internal/config"
	"github.com/phrazzld/recall-api/internal/events"
	"github.com/phrazzld/recall-api/internal/extraction"
	"github.com/phrazzld/recall-api/internal/platform/gemini"
	"github.com/phrazzld/recall-api/internal/platform/sqlstore"
	"github.com/phrazzld/recall-api/internal/service"
	"github.com/phrazzld/recall-api/internal/service/auth"
	"github.com/phrazzld/recall-api/internal/store"
	"github.com/phrazzld/recall-api/internal/task"
)

// application holds the fully wired server: configuration, stores, the
// task runner, and the services behind the HTTP handlers. Everything is
// constructed once in newApplication and passed down explicitly.
type application struct {
	config *config.Config
	logger *slog.Logger

	db        *sql.DB // nil for the memory backend
	taskStore task.Store
	setRepo   store.SetRepository

	runner     *task.Runner
	processor  service.ProcessorService
	jwtService auth.JWTService
	validate   *validator.Validate
}

// newApplication wires all application components from configuration.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		validate: validator.New(),
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	app.jwtService = jwtService

	if err := app.setupStores(ctx); err != nil {
		return nil, err
	}

	extractor := extraction.NewContentExtractor(logger)

	generator, err := gemini.NewGeminiGenerator(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	pipeline, err := task.NewPipeline(extractor, generator, app.setRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	runner, err := task.NewRunner(app.taskStore, pipeline, runnerConfig(cfg.Task), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task runner: %w", err)
	}
	app.runner = runner

	dispatch, err := task.NewDispatchHandler(runner, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch handler: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(dispatch)

	retention := time.Duration(cfg.Task.RetentionHours) * time.Hour
	processor, err := service.NewProcessorService(app.taskStore, emitter, retention, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor service: %w", err)
	}
	app.processor = processor

	return app, nil
}

// setupStores selects the task store and set repository backend. The sql
// backend runs migrations before handing out stores.
func (app *application) setupStores(ctx context.Context) error {
	if app.config.Store.Backend != "sql" {
		app.taskStore = task.NewMemoryStore()
		app.setRepo = store.NewMemorySetRepository()
		return nil
	}

	db, dialect, err := sqlstore.Open(ctx, app.config.Store.Driver, app.config.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db, dialect); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	taskStore, err := sqlstore.NewTaskStore(db, dialect)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create task store: %w", err)
	}
	setRepo, err := sqlstore.NewSetRepository(db, dialect)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create set repository: %w", err)
	}

	app.db = db
	app.taskStore = taskStore
	app.setRepo = setRepo
	return nil
}

// runnerConfig builds the runner configuration, falling back to defaults
// for unset values.
func runnerConfig(cfg config.Task) task.RunnerConfig {
	rc := task.DefaultRunnerConfig()
	if cfg.WorkerCount > 0 {
		rc.WorkerCount = cfg.WorkerCount
	}
	if cfg.QueueSize > 0 {
		rc.QueueSize = cfg.QueueSize
	}
	if cfg.StageTimeoutSeconds > 0 {
		rc.StageTimeout = time.Duration(cfg.StageTimeoutSeconds) * time.Second
	}
	if cfg.SweepIntervalSeconds > 0 {
		rc.SweepInterval = time.Duration(cfg.SweepIntervalSeconds) * time.Second
	}
	return rc
}

// cleanup releases resources after the HTTP server has stopped. The
// runner is stopped first so no worker touches the store mid-shutdown.
func (app *application) cleanup() {
	app.runner.Stop()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
