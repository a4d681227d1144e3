package server

import (
	"log/slog"
	"strings"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	"github.com/preston-bernstein/seller-notification-service/internal/providers"
	"github.com/preston-bernstein/seller-notification-service/internal/providers/fixture"
	"github.com/preston-bernstein/seller-notification-service/internal/providers/sellerapi"
)

func selectProvider(cfg config.Config, logger *slog.Logger) providers.NotificationProvider {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "fixture", "":
		return fixture.New()
	case "sellerapi":
		return sellerapi.NewClient(sellerapi.Config{
			BaseURL: cfg.SellerAPI.BaseURL,
			Timeout: cfg.SellerAPI.Timeout,
			PerPage: cfg.SellerAPI.PerPage,
		})
	default:
		if logger != nil {
			logger.Warn("unknown provider, falling back to fixture", slog.String("provider", cfg.Provider))
		}
		return fixture.New()
	}
}
