package rmwatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// URLExtractor turns a helper response body into a candidate RM web URL.
//
// An empty string means the body held no URL. Extractors run inside a panic
// recovery boundary: a panicking extractor marks the RM out of reach for
// that cycle and the stack is logged with a correlation id.
type URLExtractor func(body []byte) string

// TextExtractor treats the whole body as the URL, trimming surrounding
// whitespace. It is the default.
var TextExtractor URLExtractor = func(body []byte) string {
	return strings.TrimSpace(string(body))
}

// JSONFieldExtractor returns a [URLExtractor] that reads a string field
// addressed with dot notation, e.g. "rm.webapp" for
// {"rm": {"webapp": "http://rm1:8088"}}. Numeric path parts index arrays.
func JSONFieldExtractor(path string) URLExtractor {
	parts := strings.Split(path, ".")

	return func(body []byte) string {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return ""
		}
		return strings.TrimSpace(extractJSONPath(data, parts))
	}
}

func extractJSONPath(data any, parts []string) string {
	current := data

	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return ""
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return ""
			}
			current = node[i]
		default:
			return ""
		}
	}

	s, _ := current.(string)
	return s
}

// RegexExtractor returns a [URLExtractor] yielding the first capture group
// of pattern, or the whole match when the pattern has no groups.
func RegexExtractor(pattern string) (URLExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	return func(body []byte) string {
		matches := re.FindSubmatch(body)
		switch len(matches) {
		case 0:
			return ""
		case 1:
			return strings.TrimSpace(string(matches[0]))
		default:
			return strings.TrimSpace(string(matches[1]))
		}
	}, nil
}

// MustRegexExtractor is like [RegexExtractor] but panics on an invalid
// pattern.
func MustRegexExtractor(pattern string) URLExtractor {
	extractor, err := RegexExtractor(pattern)
	if err != nil {
		panic("rmwatch: invalid regex pattern: " + err.Error())
	}
	return extractor
}

// FirstMatch tries extractors in order and returns the first non-empty
// answer.
func FirstMatch(extractors ...URLExtractor) URLExtractor {
	return func(body []byte) string {
		for _, extractor := range extractors {
			if s := extractor(body); s != "" {
				return s
			}
		}
		return ""
	}
}

// ErrUnknownExtractor is returned by [ParseExtractor] for an unsupported kind.
var ErrUnknownExtractor = errors.New("unknown extractor")

// ParseExtractor builds an extractor from its textual form:
// "text" (or empty), "json:<path>" or "regex:<pattern>".
func ParseExtractor(text string) (URLExtractor, error) {
	kind, arg, _ := strings.Cut(text, ":")
	switch kind {
	case "", "text":
		if arg != "" {
			return nil, fmt.Errorf("text extractor takes no argument, got %q", arg)
		}
		return TextExtractor, nil
	case "json":
		if arg == "" {
			return nil, errors.New("json extractor requires a field path")
		}
		return JSONFieldExtractor(arg), nil
	case "regex":
		if arg == "" {
			return nil, errors.New("regex extractor requires a pattern")
		}
		extractor, err := RegexExtractor(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid regex extractor: %w", err)
		}
		return extractor, nil
	default:
		return nil, fmt.Errorf("%w %q (want text, json:<path> or regex:<pattern>)", ErrUnknownExtractor, kind)
	}
}
