package poller

import "strings"

// URLExtractor pulls a candidate resource-manager URL out of a helper
// response body. The result is validated by the caller.
type URLExtractor func(body []byte) string

// TrimBody is the default [URLExtractor]: the body is a bare URL, possibly
// surrounded by whitespace.
func TrimBody(body []byte) string {
	return strings.TrimSpace(string(body))
}
