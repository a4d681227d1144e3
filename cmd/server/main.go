// Package main is the entry point for the seller notification service.
//
// Usage:
//
//	seller-notifications serve [-c config.yaml]   # run the poller and HTTP API
//	seller-notifications fetch --token TOKEN      # fetch once and print JSON
//	seller-notifications version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	"github.com/preston-bernstein/seller-notification-service/internal/logging"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seller-notifications",
		Short:         "Poll seller notifications and serve them over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newFetchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "seller-notifications %s (commit %s)\n", version, commit)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.NewLogger(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.Metrics.ServiceName,
		Version: version,
		Output:  os.Stderr,
	})
}

func main() {
	if os.Getenv("SKIP_SERVER_RUN") == "1" {
		return
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
