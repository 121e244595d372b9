// Package errsink provides the single-slot error holder the dashboard
// observes to render an unreachable resource manager.
package errsink

import (
	"sync"
	"time"
)

// Error is the value held by a [Sink].
type Error struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Sink holds at most one error. The zero value is ready to use.
type Sink struct {
	mu  sync.RWMutex
	err *Error
}

// Error returns a copy of the current error, or nil when the slot is empty.
func (s *Sink) Error() *Error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	cp := *s.err
	return &cp
}

// Set replaces the current error with message.
func (s *Sink) Set(message string) {
	s.mu.Lock()
	s.err = &Error{Message: message, At: time.Now()}
	s.mu.Unlock()
}

// Clear empties the slot and reports whether an error was present.
func (s *Sink) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return false
	}
	s.err = nil
	return true
}
