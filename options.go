package rmwatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
)

// watcherConfig holds mutable state during Watcher construction.
type watcherConfig struct {
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

// page is a configured dashboard page.
type page struct {
	name        string
	breadcrumbs []Breadcrumb
}

// Option configures a [Watcher] during construction.
// Options return an error if validation fails.
type Option func(*watcherConfig) error

// WithHelper adds a helper endpoint. Helpers are tried in the order they
// are added until one answers with a valid URL.
func WithHelper(h Helper) Option {
	return func(cfg *watcherConfig) error {
		cfg.helpers = append(cfg.helpers, h)
		return nil
	}
}

// WithHelpers adds several helper endpoints. Equivalent to calling
// [WithHelper] for each.
func WithHelpers(helpers ...Helper) Option {
	return func(cfg *watcherConfig) error {
		cfg.helpers = append(cfg.helpers, helpers...)
		return nil
	}
}

// WithHealthCheckInterval sets the time between discovery cycles.
// Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithHealthCheckInterval(d time.Duration) Option {
	return func(cfg *watcherConfig) error {
		if d <= 0 {
			return errors.New("health check interval must be positive")
		}
		cfg.healthCheckInterval = d
		return nil
	}
}

// WithRMURL seeds the ResourceManager URL used until the first successful
// discovery.
func WithRMURL(rmURL string) Option {
	return func(cfg *watcherConfig) error {
		cfg.rmURL = rmURL
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *watcherConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "rmwatch".
func WithTitle(title string) Option {
	return func(cfg *watcherConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *watcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithDiscoveryCallback registers a function called after every discovery
// cycle, once the dashboard state has been updated.
//
// Callbacks run synchronously on the polling goroutine and must not block.
// Panics are recovered and logged. Nil callbacks are ignored.
//
// Example:
//
//	w, err := rmwatch.New(
//	    rmwatch.WithDiscoveryCallback(func(d rmwatch.Discovery) {
//	        if d.Changed {
//	            log.Printf("RM moved to %s", d.URL)
//	        }
//	    }),
//	)
func WithDiscoveryCallback(cb func(Discovery)) Option {
	return func(cfg *watcherConfig) error {
		if cb == nil {
			return nil
		}
		cfg.discoveryCallbacks = append(cfg.discoveryCallbacks, cb)
		return nil
	}
}

// WithHelperServer serves the built-in helper endpoint at /helper, answered
// by r. Relative helper URLs require it.
func WithHelperServer(r Resolver) Option {
	return func(cfg *watcherConfig) error {
		if r == nil {
			return errors.New("helper resolver cannot be nil")
		}
		cfg.helperResolver = r
		return nil
	}
}

// WithHistory records every discovery cycle in a SQLite database at path,
// keeping at most limit rows. A limit of zero keeps everything.
func WithHistory(path string, limit int) Option {
	return func(cfg *watcherConfig) error {
		if path == "" {
			return errors.New("history path cannot be empty")
		}
		if limit < 0 {
			return errors.New("history limit cannot be negative")
		}
		cfg.historyPath = path
		cfg.historyLimit = limit
		return nil
	}
}

// WithPage adds a dashboard page whose breadcrumb trail is published under
// name. Without any page a single "status" page is created.
func WithPage(name string, breadcrumbs ...Breadcrumb) Option {
	return func(cfg *watcherConfig) error {
		if name == "" {
			return errors.New("page name cannot be empty")
		}
		for _, p := range cfg.pages {
			if p.name == name {
				return fmt.Errorf("duplicate page name: %q", name)
			}
		}
		cfg.pages = append(cfg.pages, page{
			name:        name,
			breadcrumbs: append([]Breadcrumb(nil), breadcrumbs...),
		})
		return nil
	}
}

// WithPollOnStart runs one discovery cycle before the first interval
// elapses. By default the first cycle happens one interval after start.
func WithPollOnStart(enabled bool) Option {
	return func(cfg *watcherConfig) error {
		cfg.pollOnStart = enabled
		return nil
	}
}

// WithClock replaces the clock driving the discovery timer. Intended for
// tests.
func WithClock(clk clock.Clock) Option {
	return func(cfg *watcherConfig) error {
		if clk == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clk
		return nil
	}
}
