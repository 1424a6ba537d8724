package pg

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies pending goose migrations from fsys.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log logger) error {
	return withGoose(ctx, pool, fsys, cfg, log, func(db *sql.DB) error {
		if err := goose.UpContext(ctx, db, cfg.MigrationsDir); err != nil {
			return errors.Join(ErrFailedToApplyMigrations, err)
		}
		return nil
	})
}

// MigrationStatus logs applied and pending migrations.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log logger) error {
	return withGoose(ctx, pool, fsys, cfg, log, func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, cfg.MigrationsDir)
	})
}

// withGoose bridges the pool to database/sql, which is all goose accepts.
func withGoose(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, cfg Config, log logger, fn func(*sql.DB) error) error {
	if _, err := fs.Stat(fsys, cfg.MigrationsDir); err != nil {
		return errors.Join(ErrMigrationsDirNotFound, err)
	}

	goose.SetBaseFS(fsys)
	goose.SetTableName(cfg.MigrationsTable)
	goose.SetLogger(&gooseLogger{ctx: ctx, log: log})
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	return fn(db)
}
