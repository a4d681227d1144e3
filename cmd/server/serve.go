package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	"github.com/preston-bernstein/seller-notification-service/internal/server"
)

func newServeCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification poller and HTTP API",
		Long: `Run the notification poller and HTTP API.

Configuration comes from the optional YAML file, then environment variables.
When a file is given it is watched and the poll interval and seller token are
applied without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg)
			logger.Info("config loaded",
				slog.String("provider", cfg.Provider),
				slog.Duration("poll_interval", cfg.Poller.Interval),
				slog.String("config_file", configFile),
			)

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []server.Option
			if configFile != "" {
				opts = append(opts, server.WithConfigFile(configFile))
			}
			server.New(cfg, logger, opts...).Run(ctx, stop)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	return cmd
}

// contextOrBackground guards commands executed without a context.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
