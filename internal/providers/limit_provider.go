package providers

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

// rateLimitedProvider wraps a NotificationProvider and enforces a minimum spacing between upstream calls.
type rateLimitedProvider struct {
	next     NotificationProvider
	interval time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewRateLimitedProvider returns a provider that allows one call per interval with a burst of one.
// Calls block until a token is available or the context ends.
func NewRateLimitedProvider(next NotificationProvider, interval time.Duration, logger *slog.Logger) NotificationProvider {
	if interval <= 0 {
		interval = time.Second
	}
	return &rateLimitedProvider{
		next:     next,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		logger:   logger,
	}
}

func (p *rateLimitedProvider) FetchNotifications(ctx context.Context, credential string) (notifications.Response, error) {
	if p == nil || p.next == nil {
		if p != nil {
			logWithProvider(ctx, p.logger, slog.LevelWarn, "rate-limited", "provider unavailable")
		}
		return notifications.Response{}, ErrProviderUnavailable
	}
	if err := p.limiter.Wait(ctx); err != nil {
		logWithProvider(ctx, p.logger, slog.LevelWarn, "rate-limited", "rate-limited fetch canceled", "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return notifications.Response{}, ctxErr
		}
		return notifications.Response{}, err
	}
	return p.next.FetchNotifications(ctx, credential)
}
