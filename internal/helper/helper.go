// Package helper serves the active ResourceManager web URL as plain text.
//
// The UI polls a helper endpoint to learn where YARN's active RM lives.
// A [Resolver] produces that URL, typically by running the cluster's
// `maprcli urls -name resourcemanager` command and cleaning up its output.
package helper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand asks the cluster CLI for the resource manager URLs.
const DefaultCommand = "maprcli urls -name resourcemanager"

// DefaultCommandTimeout bounds a single command run.
const DefaultCommandTimeout = 15 * time.Second

// ErrEmptyOutput is returned when the command printed nothing usable.
var ErrEmptyOutput = errors.New("command produced no output")

// noiseMarkers identify SSH banner lines that some clusters print ahead of
// the real output. A line is noise only when it carries every marker.
var noiseMarkers = []string{
	"Warning: Permanently added",
	"(RSA) to the list of known hosts",
}

// Resolver returns the current RM web URL text.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc func(ctx context.Context) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticResolver always returns the same URL.
type StaticResolver string

// Resolve returns s. An empty resolver reports ErrEmptyOutput.
func (s StaticResolver) Resolve(context.Context) (string, error) {
	if s == "" {
		return "", ErrEmptyOutput
	}
	return string(s), nil
}

// CommandResolver runs a shell command and parses its output with
// [ParseURLsOutput].
type CommandResolver struct {
	// Command is passed to `/bin/sh -c`. Defaults to DefaultCommand.
	Command string
	// Timeout bounds each run. Defaults to DefaultCommandTimeout.
	Timeout time.Duration
	// Shell defaults to /bin/sh.
	Shell string
}

// Resolve runs the command and returns the selected URL line.
func (r CommandResolver) Resolve(ctx context.Context) (string, error) {
	command := r.Command
	if command == "" {
		command = DefaultCommand
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("run %q: %w: %s", command, err, msg)
		}
		return "", fmt.Errorf("run %q: %w", command, err)
	}

	out := ParseURLsOutput(stdout.String())
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

// ParseURLsOutput drops SSH noise lines and picks the URL line. Trailing
// blank lines are ignored but interior ones still count. Two remaining
// lines mean the first is a header and the second is the URL; otherwise
// the first line wins.
func ParseURLsOutput(output string) string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if isNoise(line) {
			continue
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	switch len(lines) {
	case 0:
		return ""
	case 2:
		return lines[1]
	default:
		return lines[0]
	}
}

func isNoise(line string) bool {
	for _, marker := range noiseMarkers {
		if !strings.Contains(line, marker) {
			return false
		}
	}
	return true
}

// Handler serves the resolved URL as text/plain. Resolver failures become
// 502 responses so pollers treat them as an unreachable RM.
func Handler(resolver Resolver, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		url, err := resolver.Resolve(r.Context())
		if err != nil {
			logger.Warn("rm url lookup failed", "error", err)
			http.Error(w, "unable to resolve resource manager url", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintln(w, url)
	})
}
