// Package rmwatch keeps track of the active YARN ResourceManager web URL on
// clusters where the ResourceManager fails over between hosts, and serves a
// small dashboard showing where it currently lives.
//
// A helper is an HTTP endpoint whose response body is the current RM web
// URL. rmwatch polls its helpers at the configured health-check interval.
// A valid answer replaces the RM URL; anything else marks the RM as out of
// reach until a later cycle succeeds.
//
// # Quick Start
//
// Serve the built-in helper (which runs `maprcli urls -name resourcemanager`)
// and poll it:
//
//	w, _ := rmwatch.New(rmwatch.WithRMURL("http://rm1:8088"))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// Watchers use the functional options pattern:
//
//	h, _ := rmwatch.NewHelper("gateway", "https://gw.example.com/rm",
//	    rmwatch.WithHeaders("Authorization", "Bearer token"),
//	    rmwatch.WithTimeout(5*time.Second),
//	    rmwatch.WithExtractor(rmwatch.JSONFieldExtractor("active.url")),
//	)
//
//	w, err := rmwatch.New(
//	    rmwatch.WithHelper(h),
//	    rmwatch.WithHealthCheckInterval(time.Minute),
//	    rmwatch.WithHistory("rmwatch.db", 1000),
//	    rmwatch.WithPort(9090),
//	)
//
// Helpers are tried in order until one answers. [NewHelperGrid] builds one
// helper per ResourceManager host from a URL template.
//
// # URL Extractors
//
// Extractors turn a helper response body into a candidate URL:
//
//   - [TextExtractor]: the trimmed body (default)
//   - [JSONFieldExtractor]: a field addressed with dot notation
//   - [RegexExtractor]: the first capture group of a pattern
//   - [FirstMatch]: the first extractor with a non-empty result
//
// # Architecture
//
//   - internal/poller: the interval poller and helper discovery
//   - internal/controller: page controllers sharing the poller and env
//   - internal/store: in-memory dashboard state with pub/sub
//   - internal/server: REST API, Server-Sent Events and the helper endpoint
//   - internal/history: SQLite log of discovery cycles
//   - internal/helper: the built-in helper and its command resolver
//   - internal/conftool: tez-site.xml shuffle encryption editing
//   - dashboard: embedded web UI assets
package rmwatch
