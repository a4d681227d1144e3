package store

import (
	"sync"
	"time"

	"github.com/preston-bernstein/seller-notification-service/internal/domain/notifications"
)

// MemoryStore keeps the latest delivered notification snapshot in memory.
// Its SetSnapshot and SetError methods match the poller's consumer signatures.
type MemoryStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	snapshot  notifications.Snapshot
	byID      map[string]notifications.Notification
	updatedAt time.Time
	version   uint64
	lastErr   error
	errAt     time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:  time.Now,
		byID: make(map[string]notifications.Notification),
	}
}

// SetSnapshot replaces the stored snapshot wholesale.
func (s *MemoryStore) SetSnapshot(snap notifications.Snapshot) {
	list := make([]notifications.Notification, len(snap.Notifications))
	copy(list, snap.Notifications)
	snap.Notifications = list

	byID := make(map[string]notifications.Notification, len(list))
	for _, n := range list {
		if n.ID != "" {
			byID[n.ID] = n
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.byID = byID
	s.updatedAt = s.now()
	s.version++
	s.lastErr = nil
}

// SetError records the most recent fetch failure without touching the snapshot.
func (s *MemoryStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.errAt = s.now()
}

// Latest returns a copy of the stored snapshot, when it was stored, and whether
// any snapshot has been stored yet.
func (s *MemoryStore) Latest() (notifications.Snapshot, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Notifications = make([]notifications.Notification, len(s.snapshot.Notifications))
	copy(snap.Notifications, s.snapshot.Notifications)
	return snap, s.updatedAt, s.version > 0
}

// GetNotification retrieves a notification from the latest snapshot by ID.
func (s *MemoryStore) GetNotification(id string) (notifications.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.byID[id]
	return n, ok
}

// Unread returns the unread notifications of the latest snapshot in server order.
func (s *MemoryStore) Unread() []notifications.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notifications.Notification, 0, s.snapshot.Unread)
	for _, n := range s.snapshot.Notifications {
		if n.IsUnread() {
			result = append(result, n)
		}
	}
	return result
}

// Version counts stored snapshots.
func (s *MemoryStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// LastError returns the most recent failure recorded since the last snapshot.
func (s *MemoryStore) LastError() (error, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr, s.errAt
}
