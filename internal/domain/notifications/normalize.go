package notifications

import "strconv"

// Normalize converts a successful response into a Snapshot.
// Missing counts default to zero and a missing list to an empty slice.
// The second return is false when the response is not a success.
func Normalize(resp Response) (Snapshot, bool) {
	if !resp.OK() {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Notifications: make([]Notification, 0, len(resp.Data.Notifications)),
		Message:       resp.Message,
	}
	snap.Notifications = append(snap.Notifications, resp.Data.Notifications...)
	if resp.Data.Unread != nil {
		snap.Unread = clamp(*resp.Data.Unread)
	}
	if resp.Total != nil {
		snap.Total = clamp(*resp.Total)
	}
	return snap, true
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
