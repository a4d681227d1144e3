package server

import (
	"context"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/poller"
)

// Poller defines the poller behavior the server drives.
type Poller interface {
	Start(ctx context.Context, credential string, onSuccess poller.SuccessFunc, onError poller.ErrorFunc) error
	Stop()
	UpdateInterval(d time.Duration) error
	Fetch(ctx context.Context) poller.Outcome
	Status() poller.Status
}
