// Command bridgectl runs maintenance tasks against the configured store
package main

import (
	"context"
	"fmt"
	"os"

	"bridgeus/internal/app"
	"bridgeus/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	output  string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:           "bridgectl",
	Short:         "bridgectl manages a BridgeUs deployment",
	Long:          `bridgectl runs schema migrations, seeds demo data and repairs denormalized counters.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// ===============================
// SHARED SETUP
// ===============================

func newLogger() (*zap.Logger, error) {
	if verbose {
		return app.NewLogger()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// withApp loads configuration, opens the store and starts the services for
// the duration of fn
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.Services.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}
	return fn(ctx, a)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}
