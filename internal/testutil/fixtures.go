package testutil

import (
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

// SampleNotification returns an unread new-order notification with the provided id.
func SampleNotification(id string) notifications.Notification {
	return notifications.Notification{
		ID:        id,
		Type:      "App\\Notifications\\NewOrder",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Data:      map[string]any{"type": "new_order", "order_id": "ord-" + id},
	}
}

// SampleSnapshot builds a Snapshot with one sample notification per id.
func SampleSnapshot(ids ...string) notifications.Snapshot {
	list := make([]notifications.Notification, 0, len(ids))
	for _, id := range ids {
		list = append(list, SampleNotification(id))
	}
	return notifications.Snapshot{
		Unread:        len(ids),
		Notifications: list,
		Total:         len(ids),
	}
}
