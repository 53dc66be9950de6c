package pg

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// gooseMu guards goose's package-level settings.
var gooseMu sync.Mutex

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) error {
	return withGoose(ctx, pool, cfg, log, func(db *sql.DB) error {
		if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
			return errors.Join(ErrFailedToApplyMigrations, err)
		}
		return nil
	})
}

// SchemaVersion returns the latest applied migration version.
func SchemaVersion(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) (int64, error) {
	var version int64
	err := withGoose(ctx, pool, cfg, log, func(db *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return errors.Join(ErrFailedToReadVersion, err)
		}
		version = v
		return nil
	})
	return version, err
}

func withGoose(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger, fn func(db *sql.DB) error) error {
	// goose needs database/sql; this wraps the pool without new connections.
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(newSlogAdapter(log))
	goose.SetBaseFS(migrations)
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return fn(db)
}

type migrateSlogAdapter struct {
	log logger
}

func newSlogAdapter(log logger) goose.Logger {
	return &migrateSlogAdapter{
		log: log,
	}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
