package config

import (
	"fmt"

	"github.com/jpalmerr/rmwatch"
)

// BuildOptions converts parsed configuration into watcher options.
//
// Helpers come first in file order, followed by grid helpers in grid order,
// which is also the failover order.
func BuildOptions(cfg *Config) ([]rmwatch.Option, error) {
	helpers, err := BuildHelpers(cfg)
	if err != nil {
		return nil, err
	}

	opts := []rmwatch.Option{
		rmwatch.WithPort(cfg.Port),
		rmwatch.WithHealthCheckInterval(cfg.App.HealthCheckInterval.Duration()),
		rmwatch.WithPollOnStart(cfg.PollOnStart),
	}
	if cfg.Title != "" {
		opts = append(opts, rmwatch.WithTitle(cfg.Title))
	}
	if rm := cfg.App.RMURL(); rm != "" {
		opts = append(opts, rmwatch.WithRMURL(rm))
	}
	if len(helpers) > 0 {
		opts = append(opts, rmwatch.WithHelpers(helpers...))
	}
	if cfg.HelperServer.Enabled {
		opts = append(opts, rmwatch.WithHelperServer(BuildResolver(cfg.HelperServer)))
	}
	if cfg.History.Path != "" {
		opts = append(opts, rmwatch.WithHistory(cfg.History.Path, cfg.History.Limit))
	}
	for _, p := range cfg.Pages {
		crumbs := make([]rmwatch.Breadcrumb, len(p.Breadcrumbs))
		for i, b := range p.Breadcrumbs {
			crumbs[i] = rmwatch.Breadcrumb{Text: b.Text, Route: b.Route}
		}
		opts = append(opts, rmwatch.WithPage(p.Name, crumbs...))
	}

	return opts, nil
}

// BuildResolver returns the resolver answering the built-in helper.
func BuildResolver(hs HelperServerConfig) rmwatch.Resolver {
	if hs.StaticURL != "" {
		return rmwatch.StaticResolver(hs.StaticURL)
	}
	return rmwatch.CommandResolver(hs.Command, hs.CommandTimeout.Duration())
}

// BuildHelpers converts helper and grid configuration into SDK helpers.
func BuildHelpers(cfg *Config) ([]rmwatch.Helper, error) {
	var helpers []rmwatch.Helper

	for _, hc := range cfg.Helpers {
		h, err := buildHelper(hc)
		if err != nil {
			return nil, fmt.Errorf("helper %q: %w", hc.Name, err)
		}
		helpers = append(helpers, h)
	}

	for _, gc := range cfg.Grids {
		grid, err := buildGridHelpers(gc)
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", gc.Name, err)
		}
		helpers = append(helpers, grid...)
	}

	return helpers, nil
}

func buildHelper(hc HelperConfig) (rmwatch.Helper, error) {
	var opts []rmwatch.HelperOption

	if hc.Timeout != 0 {
		opts = append(opts, rmwatch.WithTimeout(hc.Timeout.Duration()))
	}
	if len(hc.Headers) > 0 {
		opts = append(opts, rmwatch.WithHeaders(mapToKeyValuePairs(hc.Headers)...))
	}

	extractor, err := buildExtractor(hc.Extractor)
	if err != nil {
		return rmwatch.Helper{}, err
	}
	if extractor != nil {
		opts = append(opts, rmwatch.WithExtractor(extractor))
	}

	return rmwatch.NewHelper(hc.Name, hc.URL, opts...)
}

func buildGridHelpers(gc GridConfig) ([]rmwatch.Helper, error) {
	opts := []rmwatch.GridOption{
		rmwatch.WithURLTemplate(gc.URLTemplate),
		rmwatch.WithDimensions(gc.Dimensions),
	}

	if gc.Timeout != 0 {
		opts = append(opts, rmwatch.WithGridTimeout(gc.Timeout.Duration()))
	}
	if len(gc.Headers) > 0 {
		opts = append(opts, rmwatch.WithGridHeaders(mapToKeyValuePairs(gc.Headers)...))
	}

	extractor, err := buildExtractor(gc.Extractor)
	if err != nil {
		return nil, err
	}
	if extractor != nil {
		opts = append(opts, rmwatch.WithGridExtractor(extractor))
	}

	return rmwatch.NewHelperGrid(gc.Name, opts...)
}

// mapToKeyValuePairs converts a map to key-value pairs in key order.
func mapToKeyValuePairs(m map[string]string) []string {
	pairs := make([]string, 0, len(m)*2)
	for _, k := range sortedKeys(m) {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildExtractor returns nil for the default text extractor.
func buildExtractor(ec ExtractorConfig) (rmwatch.URLExtractor, error) {
	if ec.Type == "" || ec.Type == "text" {
		return nil, nil
	}
	return rmwatch.ParseExtractor(ec.String())
}
