package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/printtrack/printtrack/internal/config"
	"github.com/printtrack/printtrack/internal/events"
	"github.com/printtrack/printtrack/internal/platform/gcodes"
	"github.com/printtrack/printtrack/internal/platform/klippy"
	"github.com/printtrack/printtrack/internal/platform/postgres"
	"github.com/printtrack/printtrack/internal/store"
	"github.com/printtrack/printtrack/internal/task"
)

// Printer dial retry policy at startup.
const (
	dialAttempts = 3
	dialBackoff  = 2 * time.Second
	dialTimeout  = 10 * time.Second
)

// printerGateway wraps the klippy client so the task manager can be
// created and registered as an event handler before the websocket is
// dialed. Without it, a ready notification arriving right after
// connect could be emitted before any handler exists.
type printerGateway struct {
	mu     sync.RWMutex
	client *klippy.Client
}

func (g *printerGateway) set(client *klippy.Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.client = client
}

func (g *printerGateway) StartPrint(ctx context.Context, filename string) error {
	g.mu.RLock()
	client := g.client
	g.mu.RUnlock()

	if client == nil {
		return errors.New("printer connection not established")
	}
	return client.StartPrint(ctx, filename)
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore     store.TaskStore
	metadataStore store.MetadataStore

	eventEmitter events.Emitter
	manager      *task.Manager
	printer      *klippy.Client
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	kvStore := postgres.NewPostgresNamespaceStore(db)
	app.taskStore = postgres.NewPostgresTaskStore(db, kvStore, logger)
	app.metadataStore = postgres.NewPostgresMetadataStore(kvStore)

	files := gcodes.NewRepository(cfg.Files.GCodesDir)

	// Wire the event pipeline before connecting to the printer so no
	// notification is dropped between dial and handler registration.
	emitter := events.NewInMemoryEmitter(logger)
	app.eventEmitter = emitter

	gateway := &printerGateway{}
	app.manager = task.NewManager(app.taskStore, app.metadataStore, gateway, files, logger)
	emitter.RegisterHandler(app.manager)

	client, err := dialPrinter(ctx, cfg, emitter, logger)
	if err != nil {
		return nil, err
	}
	gateway.set(client)
	app.printer = client

	logger.Info("application initialized successfully")
	return app, nil
}

// dialPrinter connects to the printer host websocket, retrying a few
// times so the server survives a printer host that comes up slightly
// after it.
func dialPrinter(
	ctx context.Context,
	cfg *config.Config,
	emitter events.Emitter,
	logger *slog.Logger,
) (*klippy.Client, error) {
	requestTimeout := time.Duration(cfg.Printer.RequestTimeoutSeconds) * time.Second

	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		client, err := klippy.Dial(dialCtx, cfg.Printer.URL, emitter, requestTimeout, logger)
		cancel()

		if err == nil {
			logger.Info("connected to printer host", "attempt", attempt)
			return client, nil
		}

		lastErr = err
		logger.Warn("failed to connect to printer host",
			"attempt", attempt,
			"max_attempts", dialAttempts,
			"error", err)

		if attempt < dialAttempts {
			select {
			case <-time.After(dialBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to printer host after %d attempts: %w",
		dialAttempts, lastErr)
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.printer != nil {
		if err := app.printer.Close(); err != nil {
			app.logger.Error("error closing printer connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
