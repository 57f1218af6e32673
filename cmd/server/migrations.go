package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/printtrack/printtrack/internal/config"
	"github.com/printtrack/printtrack/migrations"
)

// migrationTableName is where goose records applied versions.
const migrationTableName = "goose_db_version"

// slogGooseLogger adapts goose's logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), "component", "migrations")
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

// configureGoose points goose at the embedded migrations.
func configureGoose() error {
	goose.SetLogger(&slogGooseLogger{})
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(migrationTableName)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return nil
}

// migrateUp applies all pending migrations on an open connection.
func migrateUp(db *sql.DB, logger *slog.Logger) error {
	if err := configureGoose(); err != nil {
		return err
	}

	startTime := time.Now()
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	logger.Info("migrations applied",
		"duration_ms", time.Since(startTime).Milliseconds())
	return nil
}

// runMigrations executes a single migration command against the
// configured database and returns. Used by the -migrate flag.
func runMigrations(cfg *config.Config, command string, logger *slog.Logger) error {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(db, logger)

	if err := configureGoose(); err != nil {
		return err
	}

	logger.Info("executing migration command", "command", command)

	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	default:
		return fmt.Errorf("unknown migration command %q (want up, down, status or version)", command)
	}

	if err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}

	return nil
}
