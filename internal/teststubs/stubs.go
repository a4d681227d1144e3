package teststubs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

// StubProvider is a test double for providers.NotificationProvider.
type StubProvider struct {
	Response notifications.Response
	Err      error
	// Respond, when set, overrides Response/Err and receives the 1-based call number.
	Respond func(call int32) (notifications.Response, error)
	// Release, when set, blocks each call until a value is received or the channel closes.
	Release chan struct{}
	// Started receives a value (non-blocking) each time a call begins.
	Started chan struct{}
	Notify  chan struct{}

	Calls       atomic.Int32
	InFlight    atomic.Int32
	MaxInFlight atomic.Int32

	mu          sync.Mutex
	credentials []string
}

// FetchNotifications returns configured data while tracking calls and concurrency.
func (s *StubProvider) FetchNotifications(ctx context.Context, credential string) (notifications.Response, error) {
	call := s.Calls.Add(1)
	inFlight := s.InFlight.Add(1)
	defer s.InFlight.Add(-1)
	for {
		max := s.MaxInFlight.Load()
		if inFlight <= max || s.MaxInFlight.CompareAndSwap(max, inFlight) {
			break
		}
	}

	s.mu.Lock()
	s.credentials = append(s.credentials, credential)
	s.mu.Unlock()

	if s.Notify != nil {
		select {
		case <-s.Notify:
		default:
			close(s.Notify)
		}
	}
	if s.Started != nil {
		select {
		case s.Started <- struct{}{}:
		default:
		}
	}
	if s.Release != nil {
		select {
		case <-s.Release:
		case <-ctx.Done():
			return notifications.Response{}, ctx.Err()
		}
	}

	if s.Respond != nil {
		return s.Respond(call)
	}
	return s.Response, s.Err
}

// Credentials returns the credentials seen so far, in call order.
func (s *StubProvider) Credentials() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.credentials))
	copy(out, s.credentials)
	return out
}

// SuccessResponse builds a successful upstream response carrying the given notification IDs.
func SuccessResponse(unread int, ids ...string) notifications.Response {
	list := make([]notifications.Notification, 0, len(ids))
	for _, id := range ids {
		list = append(list, notifications.Notification{ID: id, Data: map[string]any{"type": "new_order"}})
	}
	total := len(ids)
	return notifications.Response{
		Status: notifications.StatusSuccess,
		Data:   &notifications.ResponseData{Unread: &unread, Notifications: list},
		Total:  &total,
	}
}

// SnapshotRecorder collects delivered snapshots and errors for assertions.
type SnapshotRecorder struct {
	mu        sync.Mutex
	snapshots []notifications.Snapshot
	errs      []error

	Delivered chan notifications.Snapshot
	Failed    chan error
}

// NewSnapshotRecorder returns a recorder with buffered notification channels.
func NewSnapshotRecorder() *SnapshotRecorder {
	return &SnapshotRecorder{
		Delivered: make(chan notifications.Snapshot, 64),
		Failed:    make(chan error, 64),
	}
}

// OnSuccess records a delivered snapshot.
func (r *SnapshotRecorder) OnSuccess(s notifications.Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()
	select {
	case r.Delivered <- s:
	default:
	}
}

// OnError records a delivered error.
func (r *SnapshotRecorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	select {
	case r.Failed <- err:
	default:
	}
}

// Snapshots returns a copy of recorded snapshots.
func (r *SnapshotRecorder) Snapshots() []notifications.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Snapshot(nil), r.snapshots...)
}

// Errors returns a copy of recorded errors.
func (r *SnapshotRecorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
