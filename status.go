package rmwatch

import (
	"context"
	"time"

	"github.com/jpalmerr/rmwatch/internal/helper"
	"github.com/jpalmerr/rmwatch/internal/poller"
	"github.com/jpalmerr/rmwatch/internal/urlcheck"
)

// OutOfReachMessage is the dashboard error shown while no helper yields a
// valid ResourceManager URL.
const OutOfReachMessage = poller.OutOfReachMessage

// Discovery is the outcome of one discovery cycle.
//
// Discovery is a snapshot; mutating it has no effect on the watcher.
type Discovery struct {
	// Helper is the name of the last helper consulted.
	Helper string

	// HelperURL is the absolute URL of the last helper consulted.
	HelperURL string

	// URL is the candidate read from the helper, trimmed. It is the new RM
	// URL only when Reachable is true.
	URL string

	// Reachable reports whether the candidate was a valid URL.
	Reachable bool

	// Changed reports whether the configured RM URL was replaced.
	Changed bool

	// StatusCode of the last helper response; zero on transport failure.
	StatusCode int

	// Latency of the last helper request.
	Latency time.Duration

	// CheckedAt is when the cycle finished.
	CheckedAt time.Time

	// Error explains why the RM is out of reach. nil when Reachable.
	Error error
}

// Breadcrumb is one entry of a page's navigation trail.
type Breadcrumb struct {
	Text  string
	Route string
}

// Resolver produces the active RM web URL for the built-in helper endpoint.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// CommandResolver returns a [Resolver] that runs command with /bin/sh and
// keeps the URL line of its output. An empty command runs
// `maprcli urls -name resourcemanager`; a zero timeout uses 15 seconds.
func CommandResolver(command string, timeout time.Duration) Resolver {
	return helper.CommandResolver{Command: command, Timeout: timeout}
}

// StaticResolver returns a [Resolver] that always answers url.
func StaticResolver(url string) Resolver {
	return helper.StaticResolver(url)
}

// IsValidURL reports whether s would be accepted as a ResourceManager URL:
// an absolute URL with a scheme and host, without surrounding whitespace.
func IsValidURL(s string) bool {
	return urlcheck.IsValid(s)
}
