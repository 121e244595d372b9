// Package controller holds the state shared by every dashboard page: the
// breadcrumb trail forwarded to the layout, the loaded flag, and the
// health-check interval applied to the discovery poller.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/jpalmerr/rmwatch/internal/env"
	"github.com/jpalmerr/rmwatch/internal/poller"
)

// Breadcrumb is one entry in a page's navigation trail.
type Breadcrumb struct {
	Text  string `json:"text"`
	Route string `json:"route,omitempty"`
}

// Notifier receives breadcrumb trails keyed by page name.
type Notifier interface {
	SetBreadcrumbs(trails map[string][]Breadcrumb)
}

// IntervalSetter is the part of the discovery poller a page configures.
type IntervalSetter interface {
	SetInterval(d time.Duration)
}

// Deferrer runs functions on a later tick of a cooperative scheduler.
type Deferrer interface {
	Later(fn func())
}

// Fetcher performs a single GET. [poller.Client] satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) poller.Response
}

// Config holds the collaborators of a [Base].
type Config struct {
	Name        string
	Breadcrumbs []Breadcrumb

	Env      *env.Env
	Poller   IntervalSetter
	Loop     Deferrer
	Notifier Notifier

	// Fetcher backs ActiveRMWebURL. nil means a new poller.Client.
	Fetcher Fetcher
	// Timeout for ActiveRMWebURL requests. Zero uses the client default.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Base is embedded by page controllers.
//
// On creation it applies the env's health-check interval to the poller and
// schedules a deferred breadcrumb forward, so a page that fills in its
// breadcrumbs right after construction is forwarded with them.
type Base struct {
	name     string
	env      *env.Env
	poller   IntervalSetter
	loop     Deferrer
	notifier Notifier
	fetcher  Fetcher
	timeout  time.Duration
	logger   *slog.Logger

	mu             sync.Mutex
	breadcrumbs    []Breadcrumb
	model          any
	isLoading      bool
	loaded         bool
	loadTime       time.Time
	refreshPending bool

	lookups sync.WaitGroup
}

// New creates a [Base] from cfg.
func New(cfg Config) (*Base, error) {
	switch {
	case cfg.Name == "":
		return nil, errors.New("controller name is required")
	case cfg.Env == nil:
		return nil, errors.New("env is required")
	case cfg.Poller == nil:
		return nil, errors.New("poller is required")
	case cfg.Loop == nil:
		return nil, errors.New("loop is required")
	case cfg.Notifier == nil:
		return nil, errors.New("notifier is required")
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = poller.NewClient()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Base{
		name:        cfg.Name,
		env:         cfg.Env,
		poller:      cfg.Poller,
		loop:        cfg.Loop,
		notifier:    cfg.Notifier,
		fetcher:     fetcher,
		timeout:     cfg.Timeout,
		logger:      logger.With("controller", cfg.Name),
		breadcrumbs: copyCrumbs(cfg.Breadcrumbs),
	}

	b.poller.SetInterval(b.env.HealthCheckInterval())
	b.scheduleForward()
	return b, nil
}

// Name returns the page name used as the breadcrumb key.
func (b *Base) Name() string {
	return b.name
}

// Breadcrumbs returns a copy of the current trail.
func (b *Base) Breadcrumbs() []Breadcrumb {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyCrumbs(b.breadcrumbs)
}

// SetBreadcrumbs replaces the trail and schedules a deferred forward.
// Several changes before the next tick produce a single forward carrying the
// latest trail.
func (b *Base) SetBreadcrumbs(crumbs []Breadcrumb) {
	b.mu.Lock()
	b.breadcrumbs = copyCrumbs(crumbs)
	b.mu.Unlock()

	b.scheduleForward()
}

// ForwardBreadcrumbs sends {name: breadcrumbs} to the notifier now.
func (b *Base) ForwardBreadcrumbs() {
	b.mu.Lock()
	crumbs := map[string][]Breadcrumb{b.name: copyCrumbs(b.breadcrumbs)}
	b.mu.Unlock()

	b.notifier.SetBreadcrumbs(crumbs)
}

func (b *Base) scheduleForward() {
	b.mu.Lock()
	if b.refreshPending {
		b.mu.Unlock()
		return
	}
	b.refreshPending = true
	b.mu.Unlock()

	b.loop.Later(func() {
		b.mu.Lock()
		b.refreshPending = false
		b.mu.Unlock()
		b.ForwardBreadcrumbs()
	})
}

// SetModel sets the page model. nil clears it, as does a typed nil such as
// a nil pointer, map or slice.
func (b *Base) SetModel(model any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
	b.deriveLoadedLocked()
}

// Model returns the page model.
func (b *Base) Model() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model
}

// SetLoading marks a load as in progress or finished. Finishing a load
// records the load time.
func (b *Base) SetLoading(loading bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isLoading && !loading {
		b.loadTime = time.Now()
	}
	b.isLoading = loading
	b.deriveLoadedLocked()
}

// IsLoading reports whether a load is in progress.
func (b *Base) IsLoading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isLoading
}

// LoadTime returns when the last load finished, or the zero time.
func (b *Base) LoadTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadTime
}

// Loaded is true exactly when a model is set and no load is in progress.
func (b *Base) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

func (b *Base) deriveLoadedLocked() {
	b.loaded = !isNil(b.model) && !b.isLoading
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// ActiveRMWebURL issues a GET to url without blocking the caller and invokes
// callback from another goroutine with the raw response body. Transport
// failures and non-2xx answers reach the callback as err.
func (b *Base) ActiveRMWebURL(ctx context.Context, url string, callback func(body string, err error)) {
	b.lookups.Add(1)
	go func() {
		defer b.lookups.Done()

		resp := b.fetcher.Fetch(ctx, url, nil, b.timeout)
		var err error
		switch {
		case resp.Error != nil:
			err = resp.Error
		case !resp.OK():
			err = &StatusError{Code: resp.StatusCode}
		}
		if err != nil {
			b.logger.Warn("active rm lookup failed", "url", url, "error", err.Error())
		}
		if callback != nil {
			callback(string(resp.Body), err)
		}
	}()
}

// Wait blocks until every outstanding ActiveRMWebURL callback has returned.
func (b *Base) Wait() {
	b.lookups.Wait()
}

// StatusError reports a non-2xx helper answer.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func copyCrumbs(crumbs []Breadcrumb) []Breadcrumb {
	if crumbs == nil {
		return nil
	}
	return append([]Breadcrumb(nil), crumbs...)
}
