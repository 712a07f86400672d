package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"academy/internal/config"
	"academy/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending migrations for the configured database and exit.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger := newLogger(cfg, os.Stderr)
	ctx := cmd.Context()

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("db_type", cfg.DatabaseType).Wrap(err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, logger); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
