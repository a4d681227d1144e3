package sellerapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func mapResponse(payload notificationsResponse) notifications.Response {
	resp := notifications.Response{
		Status:  numberToInt(&payload.Status),
		Total:   optionalInt(payload.Total),
		Message: strings.TrimSpace(payload.Message),
	}
	if payload.Data == nil {
		return resp
	}

	data := &notifications.ResponseData{
		Unread:        optionalInt(payload.Data.Unread),
		Notifications: make([]notifications.Notification, 0, len(payload.Data.Notifications)),
	}
	for _, n := range payload.Data.Notifications {
		data.Notifications = append(data.Notifications, mapNotification(n))
	}
	resp.Data = data
	return resp
}

func mapNotification(n notificationResponse) notifications.Notification {
	out := notifications.Notification{
		ID:   rawID(n.ID),
		Type: n.Type,
		Data: n.Data,
	}
	if ts, ok := parseTimestamp(n.CreatedAt); ok {
		out.CreatedAt = ts
	}
	if n.ReadAt != nil {
		if ts, ok := parseTimestamp(*n.ReadAt); ok {
			out.ReadAt = &ts
		}
	}
	return out
}

// rawID accepts both numeric and string identifiers.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func numberToInt(n *json.Number) int {
	if n == nil || *n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return int(v)
	}
	if f, err := strconv.ParseFloat(string(*n), 64); err == nil {
		return int(f)
	}
	return 0
}

func optionalInt(n *json.Number) *int {
	if n == nil || *n == "" {
		return nil
	}
	v := numberToInt(n)
	return &v
}
