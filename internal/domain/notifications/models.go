package notifications

import "time"

// StatusSuccess is the upstream status value for a successful call.
const StatusSuccess = 1

// Notification is passed through verbatim from the seller API.
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	ReadAt    *time.Time     `json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data,omitempty"`
}

// Kind returns the data discriminator (data.type), falling back to Type.
func (n Notification) Kind() string {
	if v, ok := n.Data["type"].(string); ok && v != "" {
		return v
	}
	return n.Type
}

// OrderID returns data.order_id as a string when present.
func (n Notification) OrderID() (string, bool) {
	raw, ok := n.Data["order_id"]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case float64:
		return formatNumber(v), true
	case int:
		return formatNumber(float64(v)), true
	default:
		return "", false
	}
}

// IsUnread reports whether the notification has not been read yet.
func (n Notification) IsUnread() bool {
	return n.ReadAt == nil
}

// ResponseData is the optional data block of an upstream response.
type ResponseData struct {
	Unread        *int           `json:"unread,omitempty"`
	Notifications []Notification `json:"notifications,omitempty"`
}

// Response is the raw payload returned by the notifications endpoint.
type Response struct {
	Status  int           `json:"status"`
	Data    *ResponseData `json:"data,omitempty"`
	Total   *int          `json:"total,omitempty"`
	Message string        `json:"message,omitempty"`
}

// OK reports whether the server signalled success and returned a data block.
func (r Response) OK() bool {
	return r.Status == StatusSuccess && r.Data != nil
}

// Snapshot is the normalized notification state handed to consumers.
type Snapshot struct {
	Unread        int            `json:"unread"`
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	Message       string         `json:"message,omitempty"`
}
