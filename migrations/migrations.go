// Package migrations embeds the receivables schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Files embeds the SQL migrations.
//
//go:embed *.sql
var Files embed.FS

const dir = "."

// goose keeps its base FS, dialect and logger in package state.
var gooseMu sync.Mutex

// Up applies every pending migration and returns the resulting schema version.
func Up(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (int64, error) {
	return run(ctx, pool, logger, func(db *sql.DB) error {
		return goose.UpContext(ctx, db, dir)
	})
}

// Down rolls back the most recent migration and returns the resulting schema version.
func Down(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (int64, error) {
	return run(ctx, pool, logger, func(db *sql.DB) error {
		return goose.DownContext(ctx, db, dir)
	})
}

// Collect lists the embedded migrations in version order.
func Collect() (goose.Migrations, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(Files)
	return goose.CollectMigrations(dir, 0, goose.MaxVersion)
}

func run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, fn func(*sql.DB) error) (int64, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Files)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("migrations: dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := fn(db); err != nil {
		return 0, fmt.Errorf("migrations: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("migrations: version: %w", err)
	}
	return version, nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}
