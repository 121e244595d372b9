// Package env holds the application environment shared between the
// discovery poller and page controllers: the health-check interval and the
// record of discovered hosts.
//
// An [Env] is explicitly owned by the orchestrator and passed to the
// components that read or write it. The discovery poller is the only writer
// of the resource-manager host.
package env

import (
	"errors"
	"sync"
	"time"
)

// HostRM is the hosts key under which the resource-manager web URL is kept.
const HostRM = "rm"

// DefaultHealthCheckInterval is used when no interval is configured.
const DefaultHealthCheckInterval = 30 * time.Second

// Env is a concurrency-safe application environment.
type Env struct {
	mu                  sync.RWMutex
	healthCheckInterval time.Duration
	hosts               map[string]string
}

// New creates an [Env] with the given health-check interval and initial
// hosts. The hosts map is copied.
func New(interval time.Duration, hosts map[string]string) (*Env, error) {
	if interval <= 0 {
		return nil, errors.New("health check interval must be positive")
	}

	cp := make(map[string]string, len(hosts))
	for k, v := range hosts {
		cp[k] = v
	}

	return &Env{
		healthCheckInterval: interval,
		hosts:               cp,
	}, nil
}

// HealthCheckInterval returns the configured interval between RM checks.
func (e *Env) HealthCheckInterval() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.healthCheckInterval
}

// SetHealthCheckInterval replaces the health-check interval. Non-positive
// values are ignored.
func (e *Env) SetHealthCheckInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	e.healthCheckInterval = d
	e.mu.Unlock()
}

// Host returns the URL stored under name, or "" if none.
func (e *Env) Host(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hosts[name]
}

// SetHost stores url under name and reports whether the stored value changed.
func (e *Env) SetHost(name, url string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hosts[name] == url {
		return false
	}
	e.hosts[name] = url
	return true
}

// Hosts returns a copy of all stored hosts.
func (e *Env) Hosts() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp := make(map[string]string, len(e.hosts))
	for k, v := range e.hosts {
		cp[k] = v
	}
	return cp
}
