package rmwatch

import (
	"errors"
	"time"
)

// helperConfig holds mutable state during helper construction.
type helperConfig struct {
	headers   map[string]string
	timeout   time.Duration
	extractor URLExtractor
}

// HelperOption configures a [Helper] during construction.
// Options return an error if validation fails.
type HelperOption func(*helperConfig) error

// WithHeaders adds HTTP headers sent with every request to the helper.
//
// Accepts variadic key-value pairs. Returns an error if an odd number of
// arguments is provided.
//
// Example:
//
//	h, err := rmwatch.NewHelper("proxy", url,
//	    rmwatch.WithHeaders("Authorization", "Bearer token123"),
//	)
func WithHeaders(keyValues ...string) HelperOption {
	return func(cfg *helperConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the request timeout for the helper. A helper that does
// not answer in time counts as a failed lookup. Defaults to 10 seconds.
func WithTimeout(d time.Duration) HelperOption {
	return func(cfg *helperConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithExtractor sets how the helper's response body becomes a URL.
// Defaults to [TextExtractor].
func WithExtractor(e URLExtractor) HelperOption {
	return func(cfg *helperConfig) error {
		cfg.extractor = e
		return nil
	}
}
