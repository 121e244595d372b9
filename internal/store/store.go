package store

import "time"

// Crumb is one breadcrumb as rendered by the dashboard.
type Crumb struct {
	Text  string `json:"text"`
	Route string `json:"route,omitempty"`
}

// Discovery is the outcome of one discovery cycle as stored.
type Discovery struct {
	// RMURL is the configured resource-manager URL after the cycle.
	RMURL string

	// Reachable reports whether the cycle found a valid URL.
	Reachable bool

	// Error is the error-sink message, nil when reachable.
	Error *string

	// Detail is the underlying failure, nil when reachable.
	Detail *string

	// Helper is the helper endpoint that answered last.
	Helper string

	LatencyMs int64
	CheckedAt time.Time
}

// Snapshot is the complete dashboard state.
type Snapshot struct {
	RMURL       string             `json:"rm_url"`
	Reachable   bool               `json:"reachable"`
	Error       *string            `json:"error"`
	Detail      *string            `json:"detail,omitempty"`
	Helper      string             `json:"helper,omitempty"`
	LatencyMs   int64              `json:"latency_ms"`
	CheckedAt   time.Time          `json:"checked_at"`
	Checks      int64              `json:"checks"`
	Breadcrumbs map[string][]Crumb `json:"breadcrumbs"`
}

// Store defines snapshot storage and change subscription.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// UpdateDiscovery records a discovery outcome and notifies subscribers.
	UpdateDiscovery(d Discovery)

	// SetBreadcrumbs merges page trails into the snapshot and notifies
	// subscribers.
	SetBreadcrumbs(trails map[string][]Crumb)

	// Get returns the current snapshot. The result is a copy.
	Get() Snapshot

	// Subscribe returns a channel that receives a snapshot after every change.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	Unsubscribe(ch <-chan Snapshot)
}
