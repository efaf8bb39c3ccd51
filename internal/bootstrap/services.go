package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dbsweeper/dbsweeper/config"
	adapter "github.com/dbsweeper/dbsweeper/internal/adapters/cleanup"
	"github.com/dbsweeper/dbsweeper/internal/observability/notify"
	"github.com/dbsweeper/dbsweeper/internal/observability/notify/slack"
	"github.com/dbsweeper/dbsweeper/internal/observability/statsd"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Runner  *adapter.Runner
	Metrics *statsd.Client
}

// BuildServices wires the notifier, metrics client, and cleanup runner from
// configuration.
func BuildServices(cfg *config.AppConfig, db *sql.DB, logger *slog.Logger) (*ServiceContainer, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.Enabled,
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  "dbsweeper",
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create metrics client: %w", err)
	}

	var notifier notify.Sink
	if cfg.Notifications.Enabled {
		slackClient, err := slack.NewClient(slack.Config{
			BotToken:  cfg.Notifications.BotToken,
			ChannelID: cfg.Notifications.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("create slack client: %w", err)
		}
		notifier = slackClient
		logger.Info("notifications enabled", "channel", cfg.Notifications.ChannelID)
	} else {
		logger.Info("notifications disabled")
	}

	runner, err := adapter.NewRunner(adapter.RunnerOptions{
		DB:       db,
		Config:   cfg,
		Logger:   logger,
		Notifier: notifier,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create cleanup runner: %w", err)
	}

	return &ServiceContainer{Runner: runner, Metrics: metrics}, nil
}

// RunWithShutdown runs the scheduler until it finishes or the process
// receives SIGINT or SIGTERM. Returns nil on graceful shutdown.
func RunWithShutdown(ctx context.Context, services *ServiceContainer, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return services.Runner.Run(gctx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
