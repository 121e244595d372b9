package rmwatch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jpalmerr/rmwatch/internal/urlcheck"
)

const (
	defaultHelperTimeout = 10 * time.Second

	// DefaultHelperPath is the helper served by rmwatch itself.
	DefaultHelperPath = "helper"
)

// Helper is an endpoint that answers with the active ResourceManager web URL.
//
// Helper is immutable after creation via [NewHelper]. Getters return copies
// of mutable data.
type Helper struct {
	name      string
	url       string
	headers   map[string]string
	timeout   time.Duration
	extractor URLExtractor
}

// Name identifies the helper in logs and results.
func (h Helper) Name() string {
	return h.name
}

// URL returns the helper URL as configured. A relative URL is resolved
// against rmwatch's own HTTP server.
func (h Helper) URL() string {
	return h.url
}

// Relative reports whether the URL is served by rmwatch itself.
func (h Helper) Relative() bool {
	return isRelative(h.url)
}

// Headers returns a copy of the request headers. Returns nil if none are set.
func (h Helper) Headers() map[string]string {
	return copyMap(h.headers)
}

// Timeout returns the per-request timeout.
func (h Helper) Timeout() time.Duration {
	return h.timeout
}

// Extractor returns the helper's [URLExtractor], or nil for [TextExtractor].
func (h Helper) Extractor() URLExtractor {
	return h.extractor
}

// ResolveURL returns the absolute helper URL given the base URL of the local
// server, e.g. "http://localhost:8080/".
func (h Helper) ResolveURL(base string) (string, error) {
	if !h.Relative() {
		return h.url, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	ref, err := url.Parse(h.url)
	if err != nil {
		return "", fmt.Errorf("invalid helper url %q: %w", h.url, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// NewHelper creates a [Helper].
//
// rawURL is either an absolute http(s) URL or a path relative to rmwatch's
// own server, such as [DefaultHelperPath].
//
// Example:
//
//	h, err := rmwatch.NewHelper("rm-proxy", "https://gateway.example.com/rm",
//	    rmwatch.WithHeaders("Authorization", "Bearer token"),
//	    rmwatch.WithExtractor(rmwatch.JSONFieldExtractor("active.url")),
//	)
func NewHelper(name, rawURL string, opts ...HelperOption) (Helper, error) {
	if name == "" {
		return Helper{}, errors.New("helper name cannot be empty")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Helper{}, errors.New("helper url cannot be empty")
	}

	if !isRelative(rawURL) {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return Helper{}, errors.New("invalid URL: " + err.Error())
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return Helper{}, errors.New("URL must use http:// or https://")
		}
		if !urlcheck.IsValid(rawURL) {
			return Helper{}, fmt.Errorf("invalid URL: %q", rawURL)
		}
	} else if _, err := url.Parse(rawURL); err != nil {
		return Helper{}, errors.New("invalid URL: " + err.Error())
	}

	cfg := &helperConfig{
		headers: make(map[string]string),
		timeout: defaultHelperTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Helper{}, err
		}
	}

	return Helper{
		name:      name,
		url:       rawURL,
		headers:   cfg.headers,
		timeout:   cfg.timeout,
		extractor: cfg.extractor,
	}, nil
}

// isRelative reports whether rawURL has neither scheme nor host.
func isRelative(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
