package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellgrid/strata/pkg/config"
	"github.com/cellgrid/strata/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the PostgreSQL schema",
	Long: `Apply or inspect the PostgreSQL schema migrations.

Server nodes with store.backend=postgres apply pending migrations on
startup; these commands run the same migrations out of band, for
pipelines that roll the schema before rolling the binaries.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMigrationDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := storage.Migrate(db); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openMigrationDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		return storage.MigrationStatus(db)
	},
}

func init() {
	migrateCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (overrides config)")
	migrateCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

// openMigrationDB resolves the DSN from the --dsn flag or the config file
// and verifies the database is reachable before handing it to goose.
func openMigrationDB(cmd *cobra.Command) (*sql.DB, error) {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			return nil, errors.New("a PostgreSQL DSN is required: pass --dsn or --config with store.postgres_dsn set")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if cfg.Store.PostgresDSN == "" {
			return nil, fmt.Errorf("config %s does not set store.postgres_dsn", path)
		}
		dsn = cfg.Store.PostgresDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}
