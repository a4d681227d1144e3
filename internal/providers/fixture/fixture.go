package fixture

import (
	"context"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

const providerName = "fixture"

// Provider returns a static notification set useful for local testing and demos.
type Provider struct {
	now func() time.Time
}

// New creates a fixture provider with a time source.
func New() *Provider {
	return &Provider{
		now: time.Now,
	}
}

// Name identifies the provider in logs and metrics.
func (p *Provider) Name() string {
	return providerName
}

// FetchNotifications returns a deterministic response with three notifications,
// two of them unread. The credential is ignored.
func (p *Provider) FetchNotifications(ctx context.Context, credential string) (notifications.Response, error) {
	if err := ctx.Err(); err != nil {
		return notifications.Response{}, err
	}
	_ = credential

	base := p.now().UTC().Truncate(time.Minute)
	read := base.Add(-30 * time.Minute)
	list := []notifications.Notification{
		{
			ID:        "fixture-1",
			Type:      "App\\Notifications\\NewOrder",
			CreatedAt: base.Add(-5 * time.Minute),
			Data:      map[string]any{"type": "new_order", "order_id": "1001", "message": "New order #1001"},
		},
		{
			ID:        "fixture-2",
			Type:      "App\\Notifications\\OrderCancelled",
			CreatedAt: base.Add(-20 * time.Minute),
			Data:      map[string]any{"type": "order_cancelled", "order_id": "998", "message": "Order #998 was cancelled"},
		},
		{
			ID:        "fixture-3",
			Type:      "App\\Notifications\\PayoutSent",
			ReadAt:    &read,
			CreatedAt: base.Add(-2 * time.Hour),
			Data:      map[string]any{"type": "payout_sent", "message": "Weekly payout sent"},
		},
	}

	unread := 0
	for _, n := range list {
		if n.IsUnread() {
			unread++
		}
	}
	total := len(list)
	return notifications.Response{
		Status: notifications.StatusSuccess,
		Data:   &notifications.ResponseData{Unread: &unread, Notifications: list},
		Total:  &total,
	}, nil
}
