package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/preston-bernstein/seller-notification-service/internal/http/handlers"
	"github.com/preston-bernstein/seller-notification-service/internal/http/middleware"
	"github.com/preston-bernstein/seller-notification-service/internal/metrics"
)

// NewRouter registers HTTP routes on a ServeMux. admin may be nil to serve read-only routes.
func NewRouter(handler *handlers.Handler, admin *handlers.AdminHandler) *nethttp.ServeMux {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/health", handler.Health)
	mux.HandleFunc("/ready", handler.Ready)
	mux.HandleFunc("/notifications", handler.Notifications)
	mux.HandleFunc("/notifications/", handler.NotificationByID)
	if admin != nil {
		mux.HandleFunc("/notifications/refresh", admin.Refresh)
		mux.HandleFunc("/poller", admin.PollerStatus)
		mux.HandleFunc("/poller/start", admin.StartPoller)
		mux.HandleFunc("/poller/stop", admin.StopPoller)
		mux.HandleFunc("/poller/interval", admin.UpdateInterval)
	}
	return mux
}

// NewHandler builds the router wrapped in request logging and metrics.
func NewHandler(handler *handlers.Handler, admin *handlers.AdminHandler, logger *slog.Logger, recorder *metrics.Recorder) nethttp.Handler {
	return middleware.LoggingMiddleware(logger, recorder, NewRouter(handler, admin))
}
