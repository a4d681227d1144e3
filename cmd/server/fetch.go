package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
	"github.com/preston-bernstein/seller-notification-service/internal/server"
)

var errSoftFailure = errors.New("server reported failure")

func newFetchCmd() *cobra.Command {
	var (
		configFile string
		token      string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch notifications once and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(token) == "" {
				token = cfg.SellerAPI.Token
			}
			if strings.TrimSpace(token) == "" {
				return errors.New("a seller token is required (--token or SELLER_API_TOKEN)")
			}

			ctx, cancel := context.WithTimeout(contextOrBackground(cmd.Context()), timeout)
			defer cancel()

			provider := server.NewProvider(cfg, newLogger(cfg), metrics.NewRecorder())
			resp, err := provider.FetchNotifications(ctx, token)
			if err != nil {
				return fmt.Errorf("fetch notifications: %w", err)
			}
			snap, ok := notifications.Normalize(resp)
			if !ok {
				return fmt.Errorf("%w: %s", errSoftFailure, resp.Message)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&token, "token", "", "seller bearer token (defaults to SELLER_API_TOKEN)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall fetch timeout")
	return cmd
}
