package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/logging"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
)

// instrumentedProvider records attempts, latency, errors and rate limits for every upstream call.
type instrumentedProvider struct {
	inner   NotificationProvider
	name    string
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewInstrumentedProvider wraps inner with metrics and debug logging. It makes exactly one call per fetch.
func NewInstrumentedProvider(inner NotificationProvider, name string, recorder *metrics.Recorder, logger *slog.Logger) NotificationProvider {
	if name == "" {
		name = "provider"
	}
	return &instrumentedProvider{
		inner:   inner,
		name:    name,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *instrumentedProvider) FetchNotifications(ctx context.Context, credential string) (notifications.Response, error) {
	if p.inner == nil {
		return notifications.Response{}, ErrProviderUnavailable
	}

	start := p.now()
	resp, err := p.inner.FetchNotifications(ctx, credential)
	elapsed := p.now().Sub(start)

	p.metrics.RecordProviderAttempt(p.name, elapsed, err)
	if rl, ok := AsRateLimitError(err); ok {
		p.metrics.RecordRateLimit(p.name, rl.RetryAfter)
		logWithProvider(ctx, p.logger, slog.LevelWarn, p.name, "provider rate limited",
			slog.Duration("retry_after", rl.RetryAfter))
	}

	if err != nil {
		logWithProvider(ctx, p.logger, slog.LevelDebug, p.name, "provider fetch failed",
			slog.Int64(logging.FieldDurationMS, elapsed.Milliseconds()), "error", err)
		return resp, err
	}
	logWithProvider(ctx, p.logger, slog.LevelDebug, p.name, "provider fetch complete",
		slog.Int("status", resp.Status),
		slog.Int64(logging.FieldDurationMS, elapsed.Milliseconds()))
	return resp, nil
}
