package rmwatch

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
	"time"
)

// gridConfig holds configuration during helper grid construction.
type gridConfig struct {
	urlTemplate string
	dimensions  map[string][]string
	headers     map[string]string
	timeout     time.Duration
	extractor   URLExtractor
}

// GridOption configures [NewHelperGrid].
type GridOption func(*gridConfig) error

// NewHelperGrid creates one helper per combination of dimension values,
// typically one per ResourceManager host of an HA pair.
//
// The URL template uses text/template syntax. Values are path-escaped before
// interpolation and missing keys are an error. Helpers are named
// "Base (v1/v2)" with values ordered by sorted key.
//
// Combinations are generated with keys in sorted order and values in the
// order given, which is also the failover order.
//
// Example:
//
//	helpers, err := rmwatch.NewHelperGrid("rm",
//	    rmwatch.WithURLTemplate("http://{{.host}}:8090/helper"),
//	    rmwatch.WithDimensions(map[string][]string{
//	        "host": {"rm1.example.com", "rm2.example.com"},
//	    }),
//	)
func NewHelperGrid(baseName string, opts ...GridOption) ([]Helper, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &gridConfig{
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.urlTemplate == "" {
		return nil, errors.New("URL template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	tmpl, err := template.New("url").Option("missingkey=error").Parse(cfg.urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid URL template: %w", err)
	}

	combinations := cartesianProduct(cfg.dimensions)
	helpers := make([]Helper, 0, len(combinations))
	for _, combo := range combinations {
		urlStr, err := executeTemplate(tmpl, escapeValues(combo))
		if err != nil {
			return nil, fmt.Errorf("template execution failed: %w", err)
		}

		name := formatHelperName(baseName, combo)

		var helperOpts []HelperOption
		if len(cfg.headers) > 0 {
			helperOpts = append(helperOpts, WithHeaders(flattenMap(cfg.headers)...))
		}
		if cfg.timeout > 0 {
			helperOpts = append(helperOpts, WithTimeout(cfg.timeout))
		}
		if cfg.extractor != nil {
			helperOpts = append(helperOpts, WithExtractor(cfg.extractor))
		}

		h, err := NewHelper(name, urlStr, helperOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create helper '%s': %w", name, err)
		}
		helpers = append(helpers, h)
	}

	return helpers, nil
}

// WithURLTemplate sets the helper URL template, with dimension keys as
// variables, e.g. "http://{{.host}}:8090/helper".
func WithURLTemplate(tmpl string) GridOption {
	return func(cfg *gridConfig) error {
		if tmpl == "" {
			return errors.New("URL template required")
		}
		cfg.urlTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the values to expand. Returns an error if the map is
// empty, a dimension has no values, or a value is empty.
func WithDimensions(dims map[string][]string) GridOption {
	return func(cfg *gridConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithGridHeaders adds HTTP headers to every generated helper.
func WithGridHeaders(keyValues ...string) GridOption {
	return func(cfg *gridConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithGridHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithGridTimeout sets the request timeout of every generated helper.
// Zero keeps the helper default.
func WithGridTimeout(d time.Duration) GridOption {
	return func(cfg *gridConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}

// WithGridExtractor sets the [URLExtractor] of every generated helper.
func WithGridExtractor(e URLExtractor) GridOption {
	return func(cfg *gridConfig) error {
		cfg.extractor = e
		return nil
	}
}

// cartesianProduct generates all combinations of dimension values.
// Keys are iterated in sorted order, values in slice order, rightmost key
// varying fastest.
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := sortedKeys(dims)
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
	}

	var result []map[string]string
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

func escapeValues(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.PathEscape(v)
	}
	return result
}

func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatHelperName creates "Base (v1/v2)" with values ordered by sorted key.
func formatHelperName(baseName string, combo map[string]string) string {
	keys := sortedKeys(combo)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

// flattenMap converts a map to sorted key-value pairs.
func flattenMap(m map[string]string) []string {
	keys := sortedKeys(m)
	result := make([]string, 0, len(m)*2)
	for _, k := range keys {
		result = append(result, k, m[k])
	}
	return result
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
