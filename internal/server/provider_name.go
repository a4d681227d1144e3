package server

import (
	"strings"

	"github.com/preston-bernstein/seller-notification-service/internal/providers"
)

// namedProvider is implemented by providers that report a stable name.
type namedProvider interface {
	Name() string
}

// normalizeProviderName returns a lower-cased provider name, deriving from instance when not explicitly configured.
// Used across server wiring and provider factory to keep naming consistent in metrics/logs.
func normalizeProviderName(raw string, provider providers.NotificationProvider) string {
	if name := strings.ToLower(strings.TrimSpace(raw)); name != "" {
		return name
	}
	if named, ok := provider.(namedProvider); ok {
		return strings.ToLower(named.Name())
	}
	return "provider"
}
