package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

// PollFunc is the body of one polling cycle. The context is cancelled when
// the cycle is stopped or superseded by a new [Poller.Start].
type PollFunc func(ctx context.Context)

// Poller runs a single repeating cycle: after each interval it invokes the
// poll function and, once that returns, schedules the next invocation.
//
// At most one timer is pending per Poller. [Poller.Start] supersedes any
// running cycle (cancel-then-restart), so repeated calls never stack cycles.
// All methods are safe for concurrent use.
type Poller struct {
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	interval time.Duration

	// current cycle; gen changes on every Start/Stop so stale timers and
	// in-flight runs from a superseded cycle can recognise themselves
	gen     uint64
	cancel  context.CancelFunc
	timer   clock.Timer
	delay   time.Duration // delay the pending timer was armed with
	running chan struct{} // closed when the in-flight run returns
}

// NewPoller creates a [Poller] that waits interval between runs.
// A nil clk uses the wall clock; a nil logger uses slog.Default().
func NewPoller(clk clock.Clock, interval time.Duration, logger *slog.Logger) *Poller {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		clock:    clk,
		logger:   logger,
		interval: interval,
	}
}

// Start begins a new cycle that runs fn after the current interval and
// again after every run. Any previous cycle is cancelled first: its pending
// timer is stopped and its context cancelled.
//
// If ctx is nil, context.Background() is used. Cancelling ctx ends the cycle
// the same way [Poller.Stop] does, except that it does not wait.
func (p *Poller) Start(ctx context.Context, fn PollFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.haltLocked()

	cycleCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.scheduleLocked(cycleCtx, p.gen, fn)
}

// Stop cancels the pending invocation, if any, cancels the context of an
// in-flight run and waits for that run to return. After Stop returns the
// poll function is not invoked again until [Poller.Start] is called.
//
// Stop must not be called from within the poll function. It is idempotent
// and safe to call before Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	running := p.running
	p.haltLocked()
	p.mu.Unlock()

	if running != nil {
		<-running
	}
}

// SetInterval changes the delay used for every future reschedule. A pending
// invocation keeps the delay it was armed with. Non-positive values are
// ignored.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

// Interval returns the delay that the next reschedule will use.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Pending reports whether an invocation is scheduled and the delay it was
// armed with.
func (p *Poller) Pending() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer == nil {
		return 0, false
	}
	return p.delay, true
}

// Active reports whether a cycle is running (started and not stopped).
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// haltLocked ends the current cycle without waiting for an in-flight run.
func (p *Poller) haltLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// scheduleLocked arms the single pending timer for cycle gen.
func (p *Poller) scheduleLocked(ctx context.Context, gen uint64, fn PollFunc) {
	delay := p.interval
	p.delay = delay
	p.timer = p.clock.AfterFunc(delay, func() {
		p.fire(ctx, gen, fn)
	})
}

// fire runs one invocation and reschedules if the cycle is still current.
func (p *Poller) fire(ctx context.Context, gen uint64, fn PollFunc) {
	p.mu.Lock()
	if gen != p.gen || ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	done := make(chan struct{})
	p.timer = nil
	p.running = done
	p.mu.Unlock()

	p.safeRun(ctx, fn)

	p.mu.Lock()
	if p.running == done {
		p.running = nil
	}
	if gen == p.gen && ctx.Err() == nil {
		p.scheduleLocked(ctx, gen, fn)
	}
	p.mu.Unlock()
	close(done)
}

// safeRun calls fn with panic recovery. A panic is logged with a
// correlation ID and the cycle carries on at the next interval.
func (p *Poller) safeRun(ctx context.Context, fn PollFunc) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("poll function panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(ctx)
}
