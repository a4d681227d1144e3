package sellerapi

import "encoding/json"

// notificationsResponse mirrors the upstream envelope. Counts are decoded as
// json.Number so that servers sending "3" and 3 both work.
type notificationsResponse struct {
	Status  json.Number   `json:"status"`
	Data    *dataResponse `json:"data"`
	Total   *json.Number  `json:"total"`
	Message string        `json:"message"`
}

type dataResponse struct {
	Unread        *json.Number           `json:"unread"`
	Notifications []notificationResponse `json:"notifications"`
}

type notificationResponse struct {
	ID        json.RawMessage `json:"id"`
	Type      string          `json:"type"`
	ReadAt    *string         `json:"read_at"`
	CreatedAt string          `json:"created_at"`
	Data      map[string]any  `json:"data"`
}
