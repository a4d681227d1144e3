package handlers

import (
	"log/slog"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
	"github.com/preston-bernstein/seller-notification-service/internal/poller"
)

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	Latest() (notifications.Snapshot, time.Time, bool)
	GetNotification(id string) (notifications.Notification, bool)
}

// NotificationsResponse is the body of GET /notifications.
type NotificationsResponse struct {
	notifications.Snapshot
	UpdatedAt time.Time `json:"updated_at"`
}

// Handler serves health probes and the latest notification snapshot.
type Handler struct {
	store    SnapshotReader
	logger   *slog.Logger
	statusFn func() poller.Status
}

// NewHandler constructs a Handler. statusFn may be nil.
func NewHandler(store SnapshotReader, logger *slog.Logger, statusFn func() poller.Status) *Handler {
	return &Handler{
		store:    store,
		logger:   logger,
		statusFn: statusFn,
	}
}

func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	switch {
	case r.URL.Path == "/health":
		h.Health(w, r)
	case r.URL.Path == "/ready":
		h.Ready(w, r)
	case r.URL.Path == "/notifications":
		h.Notifications(w, r)
	case strings.HasPrefix(r.URL.Path, "/notifications/"):
		h.NotificationByID(w, r)
	default:
		writeError(w, r, nethttp.StatusNotFound, "not found", h.logger)
	}
}

// Health reports the service health.
func (h *Handler) Health(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if err := r.Context().Err(); err != nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Ready reports whether the poller has delivered recently and is not failing repeatedly.
func (h *Handler) Ready(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.statusFn == nil {
		writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	status := h.statusFn()
	if status.IsReady() {
		writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ready"}, h.logger)
		return
	}
	msg := status.LastError
	switch {
	case msg != "":
	case !status.Active:
		msg = "poller not active"
	default:
		msg = "not ready"
	}
	writeError(w, r, nethttp.StatusServiceUnavailable, msg, h.logger)
}

// Notifications returns the latest stored snapshot. ?unread=true filters to unread entries.
func (h *Handler) Notifications(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.store == nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "store not configured", h.logger)
		return
	}
	logger := loggerFromContext(r, h.logger)

	snap, updatedAt, ok := h.store.Latest()
	if !ok {
		writeError(w, r, nethttp.StatusNotFound, "no notifications fetched yet", logger)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("unread"), "true") {
		filtered := make([]notifications.Notification, 0, snap.Unread)
		for _, n := range snap.Notifications {
			if n.IsUnread() {
				filtered = append(filtered, n)
			}
		}
		snap.Notifications = filtered
	}

	if logger != nil {
		logger.Debug("served notifications", "count", len(snap.Notifications), "unread", snap.Unread)
	}
	writeJSON(w, nethttp.StatusOK, NotificationsResponse{Snapshot: snap, UpdatedAt: updatedAt}, logger)
}

// NotificationByID returns one notification from the latest snapshot.
func (h *Handler) NotificationByID(w nethttp.ResponseWriter, r *nethttp.Request) {
	if !requireMethod(w, r, nethttp.MethodGet, h.logger) {
		return
	}
	if h.store == nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "store not configured", h.logger)
		return
	}
	idRaw := strings.TrimPrefix(r.URL.Path, "/notifications/")
	id, err := url.PathUnescape(idRaw)
	if err != nil || id == "" || strings.ContainsAny(id, " \t/") {
		writeError(w, r, nethttp.StatusBadRequest, "invalid notification id", h.logger)
		return
	}

	n, ok := h.store.GetNotification(id)
	if !ok {
		writeError(w, r, nethttp.StatusNotFound, "notification not found", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, n, h.logger)
}
