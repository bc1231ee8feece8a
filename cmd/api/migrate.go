package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/FilipeAphrody/authsys/internal/config"
	"github.com/FilipeAphrody/authsys/internal/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply the embedded schema and seed migrations to the PostgreSQL database.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.Storage.Driver != "postgres" {
		return oops.Code("CONFIG_INVALID").Errorf("migrate requires storage.driver postgres, got %q", cfg.Storage.Driver)
	}

	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := openPostgres(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	cmd.Println("Running migrations...")
	if err := repository.RunMigrations(ctx, db); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
