package controller

import (
	"context"
	"sync"
)

// Loop is a cooperative scheduler. Functions passed to [Loop.Later] run in
// submission order on a later tick, never inside the Later call itself.
//
// A tick is driven either by [Loop.Run] in its own goroutine or by calling
// [Loop.RunPending] directly. Ticks never overlap.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	tickMu sync.Mutex
}

// NewLoop creates an idle [Loop].
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Later queues fn for the next tick.
func (l *Loop) Later(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of functions waiting for the next tick.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// RunPending runs one tick: every function queued before the call, in order.
// Functions queued while the tick runs wait for the next one. It returns the
// number of functions run.
func (l *Loop) RunPending() int {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Run drives ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
			l.RunPending()
		}
	}
}
