// Package poller discovers the active YARN ResourceManager web URL and keeps
// re-validating it on a fixed interval.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limits
//   - [Poller]: a single repeating cycle driven by a [clock.Clock] timer
//   - [Discoverer]: asks helper endpoints for the RM URL, validates it, and
//     publishes the outcome into the shared env and error sink
//   - [Result]: outcome of one discovery cycle
//
// Users of the rmwatch library should not need to interact with this package
// directly. Configuration is done through the main rmwatch package.
//
// [clock.Clock]: https://pkg.go.dev/github.com/juju/clock#Clock
package poller
