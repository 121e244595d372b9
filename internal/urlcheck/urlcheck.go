// Package urlcheck classifies strings as usable absolute URLs.
package urlcheck

import (
	"net/url"
	"strings"
)

// IsValid reports whether s is a syntactically valid absolute URL with at
// least a scheme and a host. Surrounding whitespace is not trimmed; callers
// that read URLs from a response body should trim first.
func IsValid(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}

	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if !u.IsAbs() || u.Host == "" {
		return false
	}
	if u.Port() == "" && strings.HasSuffix(u.Host, ":") {
		return false
	}
	return u.Hostname() != ""
}

// Normalize trims whitespace around raw and returns it along with whether the
// result is valid per [IsValid].
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, IsValid(s)
}
