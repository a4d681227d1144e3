package config

import "time"

const (
	envPort             = "PORT"
	envPollInterval     = "POLL_INTERVAL"
	envProvider         = "PROVIDER"
	envSellerBaseURL    = "SELLER_API_BASE_URL"
	envSellerToken      = "SELLER_API_TOKEN"
	envSellerTimeout    = "SELLER_API_TIMEOUT"
	envSellerRate       = "SELLER_API_RATE_INTERVAL"
	envSellerPerPage    = "SELLER_API_PER_PAGE"
	envPollFetchTimeout = "POLL_FETCH_TIMEOUT"
	envPollSoftFailure  = "POLL_SOFT_FAILURE"
	envPollAutostart    = "POLL_AUTOSTART"
	envMetricsPort      = "METRICS_PORT"
	envMetricsOn        = "METRICS_ENABLED"
	envOtelEndpoint     = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService      = "OTEL_SERVICE_NAME"
	envOtelInsecure     = "OTEL_EXPORTER_OTLP_INSECURE"
	envAdminToken       = "ADMIN_TOKEN"
	envLogLevel         = "LOG_LEVEL"
	envLogFormat        = "LOG_FORMAT"

	defaultPort          = "4000"
	defaultPollInterval  = 30 * Duration(time.Second)
	defaultProvider      = "fixture"
	defaultSellerRate    = Duration(time.Second)
	defaultSellerBaseURL = "http://localhost:8000/api/v1/seller"
	defaultSellerTimeout = 10 * Duration(time.Second)
	defaultSellerPerPage = 20
	defaultSoftFailure   = "drop"
	defaultMetricsPort   = "9090"
	defaultServiceName   = "seller-notification-service"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
)

// MinPollInterval matches the poller's UpdateInterval floor.
const MinPollInterval = Duration(time.Second)
