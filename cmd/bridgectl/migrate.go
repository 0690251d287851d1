package main

import (
	"fmt"

	"bridgeus/internal/config"
	"bridgeus/internal/database"

	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	rollbackSteps  int
)

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (default DB_MIGRATIONS_PATH)")
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the postgres document store schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(db *database.Manager, path string) error {
			if err := db.Migrate(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, func(db *database.Manager, path string) error {
			if err := db.Rollback(path, rollbackSteps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", rollbackSteps)
			return nil
		})
	},
}

func withDatabase(cmd *cobra.Command, fn func(db *database.Manager, path string) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}

	db, err := database.NewManager(cmd.Context(), &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	path := migrationsPath
	if path == "" {
		path = cfg.Database.MigrationsPath
	}
	return fn(db, path)
}
