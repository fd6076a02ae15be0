package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/networknext/portal/internal/application/ingest"
	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/messaging/kafka"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	httpserver "github.com/networknext/portal/internal/interfaces/http"
	"github.com/networknext/portal/internal/interfaces/http/handlers"
)

// DefaultCruncherHealthPort serves the cruncher's health and metrics routes.
const DefaultCruncherHealthPort = 20001

const statsInterval = time.Minute

func newCruncherCmd() *cobra.Command {
	var (
		healthPort   int
		ensureTopics bool
	)
	cmd := &cobra.Command{
		Use:   "cruncher",
		Short: "Consume portal session updates into the session store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watchLogLevel(cliCtx)
			return RunCruncher(ctx, cliCtx.Config, cliCtx.Logger, CruncherOptions{
				HealthPort:   healthPort,
				EnsureTopics: ensureTopics,
			})
		},
	}
	cmd.Flags().IntVar(&healthPort, "health-port", DefaultCruncherHealthPort, "port for /healthz, /readyz and metrics")
	cmd.Flags().BoolVar(&ensureTopics, "ensure-topics", false, "create the portal topics before consuming")
	return cmd
}

// CruncherOptions tunes RunCruncher.
type CruncherOptions struct {
	HealthPort   int
	EnsureTopics bool
}

// RunCruncher consumes kafka.TopicPortalSessionUpdate into the Redis session
// store until ctx is cancelled.
func RunCruncher(ctx context.Context, cfg *config.Config, logger logging.Logger, opts CruncherOptions) error {
	logger = logger.Named("cruncher")

	tel, err := newTelemetry(cfg.Metrics, logger)
	if err != nil {
		return err
	}

	client, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer client.Close()

	if opts.EnsureTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
		if err != nil {
			return fmt.Errorf("kafka topics: %w", err)
		}
		err = tm.EnsureTopics(kafka.PortalTopics()...)
		_ = tm.Close()
		if err != nil {
			return fmt.Errorf("kafka topics: %w", err)
		}
	}

	handler := ingest.NewHandler(newSessionStore(client, cfg, logger), logger, ingest.WithObserver(tel.metrics))
	consumer, err := kafka.NewConsumer(cfg.Kafka, handler.Handle, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	defer consumer.Close()

	healthCfg := cfg.Server
	if opts.HealthPort > 0 {
		healthCfg.Port = opts.HealthPort
	}
	rc := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(Version, redisReadiness(client, tel.metrics)).WithObserver(tel.metrics),
		Logger:        logger,
		MetricsPath:   cfg.Metrics.Path,
	}
	if cfg.Metrics.Enabled {
		rc.MetricsCollector = tel.collector
	}
	health := httpserver.NewServer(healthCfg, httpserver.NewRouter(rc), logger)
	healthErr := make(chan error, 1)
	go func() { healthErr <- runServer(ctx, health) }()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	logger.Info("Portal cruncher started",
		logging.String("topic", cfg.Kafka.Topic),
		logging.String("group", cfg.Kafka.GroupID),
		logging.Int("concurrency", cfg.Kafka.Concurrency))

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-healthErr:
			if err != nil {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		case <-ticker.C:
			recordPoolStats(client, tel.metrics)
			s := consumer.Stats()
			logger.Info("Cruncher stats",
				logging.Int64("consumed", s.Consumed),
				logging.Int64("processed", s.Processed),
				logging.Int64("failed", s.Failed),
				logging.Int64("retried", s.Retried))
		case <-ctx.Done():
			logger.Info("Shutting down portal cruncher")
			if err := consumer.Close(); err != nil {
				logger.Warn("Kafka consumer close failed", logging.Err(err))
			}
			return <-healthErr
		}
	}
}
