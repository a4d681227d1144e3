package providers

import (
	"context"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

// NotificationProvider fetches the current notification state for a seller session.
// Transport failures are returned as errors; application-level failures come back
// as a Response whose status is not notifications.StatusSuccess.
type NotificationProvider interface {
	FetchNotifications(ctx context.Context, credential string) (notifications.Response, error)
}

// ProviderFunc adapts a function to NotificationProvider.
type ProviderFunc func(ctx context.Context, credential string) (notifications.Response, error)

// FetchNotifications calls f.
func (f ProviderFunc) FetchNotifications(ctx context.Context, credential string) (notifications.Response, error) {
	return f(ctx, credential)
}
