package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/stratplan/db"
	"github.com/dmitrymomot/stratplan/pkg/config"
	"github.com/dmitrymomot/stratplan/pkg/pg"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log pgLogger) error {
				return pg.Migrate(ctx, pool, db.Migrations, cfg, log)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log pgLogger) error {
				return pg.MigrationStatus(ctx, pool, db.Migrations, cfg, log)
			})
		},
	})
	return cmd
}

type pgLogger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool, pg.Config, pgLogger) error) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool, pgCfg, newLogger(cfg))
}
