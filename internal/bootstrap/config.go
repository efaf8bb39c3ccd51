// Package bootstrap wires the process together: logging, runtime options,
// the database pool, and the supervised run loop.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// RuntimeOptions are the process-level settings that come from flags or the
// environment rather than the YAML configuration file.
type RuntimeOptions struct {
	ConfigFile string `env:"DBSWEEPER_CONFIG_FILE" envDefault:"config.yaml"`
	EnvFile    string `env:"DBSWEEPER_ENV_FILE"`
	Verbose    bool   `env:"DBSWEEPER_VERBOSE"`
}

// LoadRuntimeOptions reads runtime options from the environment. Flag values
// override these in main.
func LoadRuntimeOptions() (RuntimeOptions, error) {
	var opts RuntimeOptions
	if err := env.Parse(&opts); err != nil {
		return opts, fmt.Errorf("parse runtime options: %w", err)
	}
	return opts, nil
}

// InitLogger initializes the structured logger. Verbose enables debug-level
// output.
func InitLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads environment variables from path so later configuration
// interpolation can see them. An empty path loads the conventional .env file
// when present and is silent when it is missing; an explicit path must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return fmt.Errorf("load .env file: %w", err)
			}
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
