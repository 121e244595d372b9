package store

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Updates are sent to subscribers without blocking; if a subscriber's buffer
// is full, that subscriber misses the update.
type MemoryStore struct {
	mu       sync.RWMutex
	snapshot Snapshot

	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store], seeded with the
// configured RM URL.
func NewMemoryStore(rmURL string) *MemoryStore {
	return &MemoryStore{
		snapshot: Snapshot{
			RMURL:       rmURL,
			Breadcrumbs: make(map[string][]Crumb),
		},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// UpdateDiscovery stores a discovery outcome and notifies all subscribers.
func (m *MemoryStore) UpdateDiscovery(d Discovery) {
	m.mu.Lock()
	m.snapshot.RMURL = d.RMURL
	m.snapshot.Reachable = d.Reachable
	m.snapshot.Error = copyString(d.Error)
	m.snapshot.Detail = copyString(d.Detail)
	m.snapshot.Helper = d.Helper
	m.snapshot.LatencyMs = d.LatencyMs
	m.snapshot.CheckedAt = d.CheckedAt
	m.snapshot.Checks++
	snap := m.copyLocked()
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// SetBreadcrumbs merges trails by page name and notifies all subscribers.
// It satisfies the breadcrumb notifier used by page controllers.
func (m *MemoryStore) SetBreadcrumbs(trails map[string][]Crumb) {
	m.mu.Lock()
	for name, crumbs := range trails {
		m.snapshot.Breadcrumbs[name] = append([]Crumb(nil), crumbs...)
	}
	snap := m.copyLocked()
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Get returns a copy of the current snapshot.
func (m *MemoryStore) Get() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

// Subscribe creates a new subscription.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends snap to every subscriber without blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the message
		}
	}
}

// copyLocked deep-copies the snapshot; caller holds m.mu.
func (m *MemoryStore) copyLocked() Snapshot {
	snap := m.snapshot
	snap.Error = copyString(m.snapshot.Error)
	snap.Detail = copyString(m.snapshot.Detail)
	snap.Breadcrumbs = make(map[string][]Crumb, len(m.snapshot.Breadcrumbs))
	for name, crumbs := range m.snapshot.Breadcrumbs {
		snap.Breadcrumbs[name] = append([]Crumb(nil), crumbs...)
	}
	return snap
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
