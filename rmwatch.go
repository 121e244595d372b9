package rmwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/jpalmerr/rmwatch/dashboard"
	"github.com/jpalmerr/rmwatch/internal/controller"
	"github.com/jpalmerr/rmwatch/internal/env"
	"github.com/jpalmerr/rmwatch/internal/errsink"
	"github.com/jpalmerr/rmwatch/internal/helper"
	"github.com/jpalmerr/rmwatch/internal/history"
	"github.com/jpalmerr/rmwatch/internal/metrics"
	"github.com/jpalmerr/rmwatch/internal/poller"
	"github.com/jpalmerr/rmwatch/internal/server"
	"github.com/jpalmerr/rmwatch/internal/store"
	"github.com/jpalmerr/rmwatch/internal/urlcheck"
)

const (
	defaultHealthCheckInterval = env.DefaultHealthCheckInterval
	defaultPort                = 8080
	defaultPageName            = "status"
	defaultHelperName          = "local"

	historyWriteTimeout = 5 * time.Second
)

// Watcher keeps the ResourceManager web URL current and serves the
// dashboard.
//
// The typical lifecycle is:
//
//	w, err := rmwatch.New(rmwatch.WithRMURL("http://rm1:8088"))
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	w.Start(ctx) // blocks until ctx is cancelled
type Watcher struct {
	title               string
	port                int
	rmURL               string
	healthCheckInterval time.Duration
	helpers             []Helper
	helperResolver      Resolver
	historyPath         string
	historyLimit        int
	pages               []page
	pollOnStart         bool
	clock               clock.Clock
	logger              *slog.Logger
	discoveryCallbacks  []func(Discovery)
}

// New creates a [Watcher].
//
// Without helpers, a single helper at [DefaultHelperPath] is used and served
// by the built-in helper endpoint, which runs
// `maprcli urls -name resourcemanager` unless [WithHelperServer] says
// otherwise. Other defaults:
//   - Health check interval: 30 seconds
//   - Port: 8080
//   - Pages: one "status" page
//
// Returns an error if any option is invalid, helper names repeat, a
// relative helper is configured without the helper server, or the seed RM
// URL is invalid.
func New(opts ...Option) (*Watcher, error) {
	cfg := &watcherConfig{
		port:                defaultPort,
		healthCheckInterval: defaultHealthCheckInterval,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.helpers) == 0 {
		h, err := NewHelper(defaultHelperName, DefaultHelperPath)
		if err != nil {
			return nil, err
		}
		cfg.helpers = []Helper{h}
		if cfg.helperResolver == nil {
			cfg.helperResolver = CommandResolver("", 0)
		}
	}

	seen := make(map[string]bool, len(cfg.helpers))
	for _, h := range cfg.helpers {
		if seen[h.name] {
			return nil, fmt.Errorf("duplicate helper name: %q", h.name)
		}
		seen[h.name] = true

		if h.Relative() && cfg.helperResolver == nil {
			return nil, fmt.Errorf("helper %q uses relative url %q but the helper server is disabled", h.name, h.url)
		}
	}

	if cfg.rmURL != "" && !urlcheck.IsValid(cfg.rmURL) {
		return nil, fmt.Errorf("invalid rm url: %q", cfg.rmURL)
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	if len(cfg.pages) == 0 {
		cfg.pages = []page{{
			name:        defaultPageName,
			breadcrumbs: []Breadcrumb{{Text: "Home", Route: "/"}, {Text: "ResourceManager"}},
		}}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.clock
	if clk == nil {
		clk = clock.WallClock
	}

	return &Watcher{
		title:               cfg.title,
		port:                cfg.port,
		rmURL:               cfg.rmURL,
		healthCheckInterval: cfg.healthCheckInterval,
		helpers:             cfg.helpers,
		helperResolver:      cfg.helperResolver,
		historyPath:         cfg.historyPath,
		historyLimit:        cfg.historyLimit,
		pages:               cfg.pages,
		pollOnStart:         cfg.pollOnStart,
		clock:               clk,
		logger:              logger,
		discoveryCallbacks:  cfg.discoveryCallbacks,
	}, nil
}

// Start runs discovery and serves the dashboard until ctx is cancelled.
//
// The first discovery cycle runs one health-check interval after start, or
// immediately with [WithPollOnStart]. The dashboard is available at
// http://localhost:<port>.
//
// Returns nil on graceful shutdown and an error if a component fails to
// start.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("rmwatch starting", "helper_count", len(w.helpers))
	w.logger.Info("health check configured", "interval", w.healthCheckInterval.String())
	w.logger.Info("dashboard available", "url", w.baseURL())

	if ctx.Err() != nil {
		return nil
	}

	hosts := map[string]string{}
	if w.rmURL != "" {
		hosts[env.HostRM] = w.rmURL
	}
	environment, err := env.New(w.healthCheckInterval, hosts)
	if err != nil {
		return fmt.Errorf("failed to create env: %w", err)
	}

	helperInfos, err := w.toPollerHelpers()
	if err != nil {
		return err
	}

	s := &session{
		env:          environment,
		store:        store.NewMemoryStore(w.rmURL),
		metrics:      metrics.NewCollector(),
		historyLimit: w.historyLimit,
		callbacks:    w.discoveryCallbacks,
		logger:       w.logger,
		lookupURL:    helperInfos[0].URL,
	}

	if w.historyPath != "" {
		s.history, err = history.Open(ctx, w.historyPath)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
	}

	s.discoverer, err = poller.NewDiscoverer(poller.DiscovererConfig{
		Helpers:  helperInfos,
		Env:      environment,
		Sink:     &errsink.Sink{},
		Clock:    w.clock,
		Logger:   w.logger,
		OnResult: s.handleResult,
	})
	if err != nil {
		s.close()
		return fmt.Errorf("failed to create discoverer: %w", err)
	}

	loop := controller.NewLoop()
	s.client = poller.NewClient()
	for _, p := range w.pages {
		base, err := controller.New(controller.Config{
			Name:        p.name,
			Breadcrumbs: toControllerCrumbs(p.breadcrumbs),
			Env:         environment,
			Poller:      s.discoverer,
			Loop:        loop,
			Notifier:    storeNotifier{store: s.store},
			Fetcher:     s.client,
			Timeout:     helperInfos[0].Timeout,
			Logger:      w.logger,
		})
		if err != nil {
			s.close()
			return fmt.Errorf("failed to create page %q: %w", p.name, err)
		}
		s.pages = append(s.pages, base)
	}

	serverOpts := []server.Option{
		server.WithRefresher(s),
		server.WithHelperLookup(s),
		server.WithPages(s),
		server.WithMetricsHandler(metrics.Handler(s.metrics)),
	}
	if s.history != nil {
		serverOpts = append(serverOpts, server.WithHistory(s.history))
	}
	if w.helperResolver != nil {
		serverOpts = append(serverOpts, server.WithHelperHandler(helper.Handler(w.helperResolver, w.logger)))
	}

	httpServer := server.NewServer(s.store, w.port, dashboard.Assets, w.title, w.logger, serverOpts...)
	serverDone, err := httpServer.Start(ctx)
	if err != nil {
		s.close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	if w.pollOnStart {
		if err := s.Refresh(ctx); err != nil {
			w.logger.Warn("initial discovery failed", "error", err)
		}
	}
	s.discoverer.Start(ctx)

	<-ctx.Done()

	// stop discovery first so no result lands after history is closed
	s.discoverer.Stop()
	for _, p := range s.pages {
		p.Wait()
	}
	wg.Wait()
	// handlers such as /api/refresh may still write history until then
	<-serverDone
	s.close()

	w.logger.Info("rmwatch stopped")
	return nil
}

// Helpers returns a copy of the configured helpers.
func (w *Watcher) Helpers() []Helper {
	cp := make([]Helper, len(w.helpers))
	copy(cp, w.helpers)
	return cp
}

// Port returns the HTTP port of the dashboard server.
func (w *Watcher) Port() int {
	return w.port
}

// HealthCheckInterval returns the time between discovery cycles.
func (w *Watcher) HealthCheckInterval() time.Duration {
	return w.healthCheckInterval
}

// HelperServerEnabled reports whether /helper is served.
func (w *Watcher) HelperServerEnabled() bool {
	return w.helperResolver != nil
}

func (w *Watcher) baseURL() string {
	return fmt.Sprintf("http://localhost:%d/", w.port)
}

// toPollerHelpers converts helpers to the poller format, resolving relative
// URLs against the local server.
func (w *Watcher) toPollerHelpers() ([]poller.HelperInfo, error) {
	result := make([]poller.HelperInfo, len(w.helpers))

	for i, h := range w.helpers {
		abs, err := h.ResolveURL(w.baseURL())
		if err != nil {
			return nil, fmt.Errorf("helper %q: %w", h.name, err)
		}

		var extractor poller.URLExtractor
		if h.extractor != nil {
			extractor = poller.URLExtractor(h.extractor)
		}

		result[i] = poller.HelperInfo{
			Name:      h.name,
			URL:       abs,
			Headers:   copyMap(h.headers),
			Timeout:   h.timeout,
			Extractor: extractor,
		}
	}

	return result, nil
}

// session is the runtime state of one Start call.
type session struct {
	env          *env.Env
	store        *store.MemoryStore
	metrics      *metrics.Collector
	history      *history.Store
	historyLimit int
	discoverer   *poller.Discoverer
	client       *poller.Client
	pages        []*controller.Base
	callbacks    []func(Discovery)
	logger       *slog.Logger
	lookupURL    string
}

// handleResult fans a cycle result out to the store, metrics, pages,
// history and callbacks, in that order.
func (s *session) handleResult(r poller.Result) {
	s.store.UpdateDiscovery(resultToStoreDiscovery(r, s.env.Host(env.HostRM)))
	s.metrics.Observe(r.Helper, r.Valid, r.Changed, r.Latency, r.CheckedAt)

	public := resultToPublic(r)
	for _, p := range s.pages {
		p.SetModel(public)
		p.SetLoading(false)
	}

	if s.history != nil {
		s.record(r)
	}

	for _, cb := range s.callbacks {
		invokeCallbackSafe(cb, public, s.logger)
	}
}

func (s *session) record(r poller.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	entry := history.Entry{
		CheckedAt: r.CheckedAt,
		Helper:    r.Helper,
		URL:       r.URL,
		Reachable: r.Valid,
		Changed:   r.Changed,
		LatencyMs: r.Latency.Milliseconds(),
	}
	if r.Error != nil {
		msg := r.Error.Error()
		entry.Error = &msg
	}

	if _, err := s.history.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record discovery", "error", err)
		return
	}
	if s.historyLimit > 0 {
		if _, err := s.history.Prune(ctx, s.historyLimit); err != nil {
			s.logger.Warn("failed to prune history", "error", err)
		}
	}
}

// Refresh runs a discovery cycle now, outside the polling schedule.
func (s *session) Refresh(ctx context.Context) error {
	for _, p := range s.pages {
		p.SetLoading(true)
	}
	defer func() {
		for _, p := range s.pages {
			if p.IsLoading() {
				p.SetLoading(false)
			}
		}
	}()

	s.discoverer.Check(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("refresh cancelled: %w", err)
	}
	return nil
}

type lookupResult struct {
	body string
	err  error
}

// LookupHelper asks the first helper for its raw answer through the first
// page's non-blocking lookup.
func (s *session) LookupHelper(ctx context.Context) (string, error) {
	if len(s.pages) == 0 {
		return "", errors.New("no page available for lookup")
	}

	ch := make(chan lookupResult, 1)
	s.pages[0].ActiveRMWebURL(ctx, s.lookupURL, func(body string, err error) {
		ch <- lookupResult{body: body, err: err}
	})

	select {
	case r := <-ch:
		return r.body, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Pages reports page controller state for the dashboard.
func (s *session) Pages() []server.Page {
	pages := make([]server.Page, 0, len(s.pages))
	for _, p := range s.pages {
		sp := server.Page{
			Name:        p.Name(),
			Loaded:      p.Loaded(),
			Loading:     p.IsLoading(),
			Breadcrumbs: controllerToStoreCrumbs(p.Breadcrumbs()),
		}
		if lt := p.LoadTime(); !lt.IsZero() {
			sp.LoadTime = &lt
		}
		pages = append(pages, sp)
	}
	return pages
}

func (s *session) close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("failed to close history", "error", err)
		}
	}
}

// storeNotifier publishes page breadcrumbs to the store.
type storeNotifier struct {
	store store.Store
}

func (n storeNotifier) SetBreadcrumbs(trails map[string][]controller.Breadcrumb) {
	converted := make(map[string][]store.Crumb, len(trails))
	for name, crumbs := range trails {
		converted[name] = controllerToStoreCrumbs(crumbs)
	}
	n.store.SetBreadcrumbs(converted)
}

func toControllerCrumbs(crumbs []Breadcrumb) []controller.Breadcrumb {
	if crumbs == nil {
		return nil
	}
	out := make([]controller.Breadcrumb, len(crumbs))
	for i, c := range crumbs {
		out[i] = controller.Breadcrumb{Text: c.Text, Route: c.Route}
	}
	return out
}

func controllerToStoreCrumbs(crumbs []controller.Breadcrumb) []store.Crumb {
	out := make([]store.Crumb, len(crumbs))
	for i, c := range crumbs {
		out[i] = store.Crumb{Text: c.Text, Route: c.Route}
	}
	return out
}

// resultToStoreDiscovery converts a poller result to the stored form.
// rmURL is the env's RM URL after the cycle.
func resultToStoreDiscovery(r poller.Result, rmURL string) store.Discovery {
	d := store.Discovery{
		RMURL:     rmURL,
		Reachable: r.Valid,
		Helper:    r.Helper,
		LatencyMs: r.Latency.Milliseconds(),
		CheckedAt: r.CheckedAt,
	}
	if !r.Valid {
		msg := poller.OutOfReachMessage
		d.Error = &msg
		if r.Error != nil {
			detail := r.Error.Error()
			d.Detail = &detail
		}
	}
	return d
}

// resultToPublic converts a poller result to the public type.
func resultToPublic(r poller.Result) Discovery {
	return Discovery{
		Helper:     r.Helper,
		HelperURL:  r.HelperURL,
		URL:        r.URL,
		Reachable:  r.Valid,
		Changed:    r.Changed,
		StatusCode: r.StatusCode,
		Latency:    r.Latency,
		CheckedAt:  r.CheckedAt,
		Error:      r.Error,
	}
}

// invokeCallbackSafe calls a discovery callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Discovery), d Discovery, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("discovery callback panicked",
				"panic", r,
				"helper", d.Helper,
			)
		}
	}()
	cb(d)
}
