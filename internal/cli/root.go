// Package cli provides the command-line interface for rowloader.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/rowloader/internal/config"
	"github.com/raphaelgruber/rowloader/internal/db"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client
	logger   *slog.Logger

	closeLogger = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rowloader",
	Short: "Load CSV records into SurrealDB",
	Long: `Rowloader streams records from a CSV file into a SurrealDB table.

Rows are written concurrently by a fixed pool of workers. A row whose write
fails is retried once on a separate path after the rest keep flowing, and the
load does not finish until every retry has been attempted.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if configPath != "" {
			var err error
			if cfg, err = config.LoadFile(cfg, configPath); err != nil {
				return err
			}
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		if err := applyLoadFlags(cmd, &cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		opts := config.LoggerOptions{File: cfg.LogFile, Level: cfg.LogLevel}
		if progressEnabled(cmd) {
			// per-row warnings would tear the live view; they still reach the file
			quiet := slog.LevelError
			opts.ConsoleLevel = &quiet
		}
		logger, closeLogger = config.SetupLogger(opts)
		slog.SetDefault(logger)

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	// PostRun hooks are skipped when a command fails, so clean up here
	defer cleanup()
	return rootCmd.Execute()
}

func cleanup() {
	if dbClient != nil {
		if err := dbClient.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
		dbClient = nil
	}
	_ = closeLogger()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides environment)")
}
