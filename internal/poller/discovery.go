package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/jpalmerr/rmwatch/internal/env"
	"github.com/jpalmerr/rmwatch/internal/errsink"
	"github.com/jpalmerr/rmwatch/internal/urlcheck"
)

// OutOfReachMessage is written to the error sink when no helper yields a
// valid resource-manager URL.
const OutOfReachMessage = "YARN ResourceManager (RM) is out of reach."

// ErrNoHelpers is returned by [NewDiscoverer] when no helper is configured.
var ErrNoHelpers = errors.New("at least one helper endpoint is required")

// HelperInfo describes one helper endpoint to query.
type HelperInfo struct {
	// Name identifies the helper in logs and results.
	Name string

	// URL is the absolute URL of the helper endpoint.
	URL string

	// Headers are sent with every request.
	Headers map[string]string

	// Timeout is the per-request timeout. Zero uses the client default.
	Timeout time.Duration

	// Extractor turns the response body into a candidate URL.
	// If nil, [TrimBody] is used.
	Extractor URLExtractor
}

// Result is the outcome of one discovery cycle.
type Result struct {
	// Helper is the name of the last helper consulted.
	Helper string

	// HelperURL is the URL of the last helper consulted.
	HelperURL string

	// URL is the extracted candidate, trimmed. Empty when nothing was read.
	URL string

	// Valid reports whether URL passed validation.
	Valid bool

	// Changed reports whether the configured RM URL was overwritten.
	Changed bool

	// StatusCode of the last helper response; zero on transport failure.
	StatusCode int

	// Latency of the last helper request.
	Latency time.Duration

	// CheckedAt is when the cycle finished.
	CheckedAt time.Time

	// Error describes why no valid URL was found. nil when Valid.
	Error error
}

// DiscovererConfig holds the collaborators of a [Discoverer].
type DiscovererConfig struct {
	// Helpers are queried in order until one yields a valid URL.
	Helpers []HelperInfo

	// Env receives the discovered RM URL. Required.
	Env *env.Env

	// Sink receives the out-of-reach error. Required.
	Sink *errsink.Sink

	// Clock drives the polling timer. nil means the wall clock.
	Clock clock.Clock

	// Logger for discovery events. nil means slog.Default().
	Logger *slog.Logger

	// OnResult, if set, is called after every cycle that was not cancelled.
	OnResult func(Result)
}

// Discoverer periodically asks helper endpoints for the active RM web URL,
// validates the answer and publishes it.
//
// A valid answer clears the error sink and, if it differs, replaces the RM
// URL stored in the env. Anything else sets the sink to [OutOfReachMessage]
// and leaves the env untouched. Failures never escape a cycle; the next
// attempt is simply the next interval.
type Discoverer struct {
	helpers  []HelperInfo
	env      *env.Env
	sink     *errsink.Sink
	clock    clock.Clock
	logger   *slog.Logger
	onResult func(Result)

	client *Client
	poller *Poller
}

// NewDiscoverer validates cfg and creates a [Discoverer]. The poll interval
// starts as the env's health-check interval.
func NewDiscoverer(cfg DiscovererConfig) (*Discoverer, error) {
	if len(cfg.Helpers) == 0 {
		return nil, ErrNoHelpers
	}
	if cfg.Env == nil {
		return nil, errors.New("env is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("error sink is required")
	}
	for i, h := range cfg.Helpers {
		if !urlcheck.IsValid(h.URL) {
			return nil, fmt.Errorf("helpers[%d] (%s): invalid url %q", i, h.Name, h.URL)
		}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	helpers := make([]HelperInfo, len(cfg.Helpers))
	copy(helpers, cfg.Helpers)

	return &Discoverer{
		helpers:  helpers,
		env:      cfg.Env,
		sink:     cfg.Sink,
		clock:    clk,
		logger:   logger,
		onResult: cfg.OnResult,
		client:   NewClient(),
		poller:   NewPoller(clk, cfg.Env.HealthCheckInterval(), logger),
	}, nil
}

// Start begins the repeating discovery cycle. The first check runs one
// interval from now. Calling Start again restarts the cycle.
func (d *Discoverer) Start(ctx context.Context) {
	d.logger.Info("rm discovery starting",
		"helpers", len(d.helpers),
		"interval", d.poller.Interval().String(),
	)
	d.poller.Start(ctx, func(ctx context.Context) {
		d.Check(ctx)
	})
}

// Stop cancels the pending check and any in-flight request, then releases
// idle connections. No shared state is modified after Stop returns.
func (d *Discoverer) Stop() {
	d.poller.Stop()
	d.client.Close()
}

// SetInterval changes the delay between future checks.
func (d *Discoverer) SetInterval(interval time.Duration) {
	d.poller.SetInterval(interval)
}

// Interval returns the delay that the next reschedule will use.
func (d *Discoverer) Interval() time.Duration {
	return d.poller.Interval()
}

// Poller exposes the underlying cycle for inspection.
func (d *Discoverer) Poller() *Poller {
	return d.poller
}

// Check runs one discovery cycle synchronously and returns its outcome.
//
// If ctx is cancelled before the outcome is published, neither the env nor
// the sink is touched and the returned Result carries ctx.Err().
func (d *Discoverer) Check(ctx context.Context) Result {
	var (
		result Result
		errs   []string
	)

	for _, h := range d.helpers {
		result = d.query(ctx, h)
		if result.Valid || ctx.Err() != nil {
			break
		}
		errs = append(errs, fmt.Sprintf("%s: %v", h.Name, result.Error))
	}
	result.CheckedAt = d.clock.Now()

	if err := ctx.Err(); err != nil {
		result.Valid = false
		result.Error = fmt.Errorf("discovery cancelled: %w", err)
		return result
	}

	if result.Valid {
		d.sink.Clear()
		result.Changed = d.env.SetHost(env.HostRM, result.URL)
		if result.Changed {
			d.logger.Info("rm url changed", "url", result.URL, "helper", result.Helper)
		} else {
			d.logger.Debug("rm url confirmed", "url", result.URL, "latency_ms", result.Latency.Milliseconds())
		}
	} else {
		d.sink.Set(OutOfReachMessage)
		if len(errs) > 1 {
			result.Error = errors.New(strings.Join(errs, "; "))
		}
		d.logger.Warn("rm out of reach", "error", result.Error.Error(), "helpers", len(d.helpers))
	}

	if d.onResult != nil {
		d.onResult(result)
	}
	return result
}

// query asks a single helper.
func (d *Discoverer) query(ctx context.Context, h HelperInfo) Result {
	resp := d.client.Fetch(ctx, h.URL, h.Headers, h.Timeout)

	result := Result{
		Helper:     h.Name,
		HelperURL:  h.URL,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
	}

	switch {
	case resp.Error != nil:
		result.Error = resp.Error
		return result
	case !resp.OK():
		result.Error = fmt.Errorf("helper returned status %d", resp.StatusCode)
		return result
	}

	extract := h.Extractor
	if extract == nil {
		extract = TrimBody
	}
	candidate, err := d.safeExtract(extract, resp.Body)
	if err != nil {
		result.Error = err
		return result
	}
	result.URL = strings.TrimSpace(candidate)
	result.Valid = urlcheck.IsValid(result.URL)
	if !result.Valid {
		if result.URL == "" {
			result.Error = errors.New("helper returned no url")
		} else {
			result.Error = fmt.Errorf("helper returned invalid url %q", result.URL)
		}
	}
	return result
}

// safeExtract calls the extractor with panic recovery. A panic is logged
// with a correlation ID and reported as an ordinary extraction failure.
func (d *Discoverer) safeExtract(extract URLExtractor, body []byte) (candidate string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.logger.Error("extractor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			candidate = ""
			err = fmt.Errorf("extractor panic (correlation_id: %s)", correlationID)
		}
	}()
	return extract(body), nil
}
