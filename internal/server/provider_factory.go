package server

import (
	"log/slog"

	"github.com/preston-bernstein/seller-notification-service/internal/config"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
	"github.com/preston-bernstein/seller-notification-service/internal/providers"
)

// providerFactory assembles the provider with shared wrappers (instrumentation + rate limit).
type providerFactory struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func newProviderFactory(logger *slog.Logger, metrics *metrics.Recorder) providerFactory {
	return providerFactory{logger: logger, metrics: metrics}
}

func (f providerFactory) build(cfg config.Config) providers.NotificationProvider {
	return f.wrap(cfg, selectProvider(cfg, f.logger))
}

// wrap instruments base and spaces its calls by the configured rate interval.
// The limiter sits outside instrumentation so recorded latency excludes limiter wait.
func (f providerFactory) wrap(cfg config.Config, base providers.NotificationProvider) providers.NotificationProvider {
	name := normalizeProviderName(cfg.Provider, base)
	instrumented := providers.NewInstrumentedProvider(base, name, f.metrics, f.logger)
	return providers.NewRateLimitedProvider(instrumented, cfg.SellerAPI.RateInterval, f.logger)
}

// NewProvider builds the configured provider with the same wrappers the server uses.
func NewProvider(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) providers.NotificationProvider {
	return newProviderFactory(logger, recorder).build(cfg)
}
