// Command dbsweeper runs scheduled, time-boxed database cleanup tasks.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsweeper/dbsweeper/config"
	"github.com/dbsweeper/dbsweeper/internal/bootstrap"
)

var (
	configFile string
	envFile    string
	verbose    bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "dbsweeper",
		Short:        "Scheduled database cleanup daemon",
		Long:         "dbsweeper runs cron-scheduled cleanup tasks against a MySQL database,\ndeleting expired rows in paced batches under a per-task time budget.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configFile, "config-file", "c", "", "path to the YAML configuration file")
	cmd.Flags().StringVarP(&envFile, "env-file", "e", "", "path to an env file loaded before interpolation")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(ctx context.Context) error {
	opts, err := bootstrap.LoadRuntimeOptions()
	if err != nil {
		return err
	}
	if configFile != "" {
		opts.ConfigFile = configFile
	}
	if envFile != "" {
		opts.EnvFile = envFile
	}
	if verbose {
		opts.Verbose = true
	}

	logger := bootstrap.InitLogger(opts.Verbose)

	if err := bootstrap.LoadEnvFile(opts.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigFile, logger)
	if err != nil {
		logger.Error("configuration load failed", "path", opts.ConfigFile, "error", err)
		return err
	}
	logger.Info("configuration loaded",
		"path", opts.ConfigFile,
		"tasks", len(cfg.CleanupTasks),
		"safety_enabled", cfg.Safety.Enabled,
	)

	db, err := bootstrap.ConnectDB(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(db.Close, logger, "database pool")

	services, err := bootstrap.BuildServices(&cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(services.Metrics.Close, logger, "metrics client")

	return bootstrap.RunWithShutdown(ctx, services, logger)
}

func closeQuietly(closeFn func() error, logger *slog.Logger, what string) {
	if err := closeFn(); err != nil {
		logger.Warn("close failed", "target", what, "error", err)
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
