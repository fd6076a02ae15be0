package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/networknext/portal/internal/config"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watchLogLevel(cliCtx)

			portal, err := NewPortal(cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := portal.Close(); err != nil {
					cliCtx.Logger.Warn("Error while closing portal", logging.Err(err))
				}
			}()

			cliCtx.Logger.Info("Starting portal",
				logging.String("version", Version),
				logging.String("addr", cfg.Server.Addr()),
				logging.Bool("auth", cfg.Auth.Enabled))
			return portal.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides server.port)")
	return cmd
}

// watchLogLevel applies log level changes from the config file without a
// restart. Other settings need a restart to take effect.
func watchLogLevel(c *CLIContext) {
	if c.ConfigPath == "" {
		return
	}
	err := config.Watch(c.ConfigPath, func(cfg *config.Config) {
		if cfg.Log.Level == logging.CurrentLevel() {
			return
		}
		logging.SetLevel(cfg.Log.Level)
		c.Logger.Info("Log level changed", logging.String("level", cfg.Log.Level))
	}, func(err error) {
		c.Logger.Warn("Ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		c.Logger.Warn("Config file watch disabled", logging.String("path", c.ConfigPath), logging.Err(err))
	}
}
