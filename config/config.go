// Package config provides YAML configuration parsing for rmwatch.
//
// This package enables running rmwatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Tez UI
//	port: 8080
//
//	app:
//	  health_check_interval: 30s
//	  hosts:
//	    rm: http://rm1.example.com:8088
//
//	helpers:
//	  - name: local
//	    url: helper
//	    timeout: 5s
//
//	grids:
//	  - name: rm
//	    url_template: "http://{{.host}}:8090/helper"
//	    dimensions:
//	      host: [rm1.example.com, rm2.example.com]
//
//	helper_server:
//	  enabled: true
//	  command: maprcli urls -name resourcemanager
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort                = 8080
	defaultHealthCheckInterval = 30 * time.Second
	defaultHistoryLimit        = 100

	// minHealthCheckInterval keeps a typo like "30ms" from hammering helpers.
	minHealthCheckInterval = 1 * time.Second
)

// Config is the root configuration structure for rmwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "rmwatch" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// App holds the settings shared by every page.
	App AppConfig `yaml:"app"`

	// PollOnStart runs one discovery cycle immediately on start.
	PollOnStart bool `yaml:"poll_on_start"`

	// Helpers are tried in order until one answers with a valid URL.
	Helpers []HelperConfig `yaml:"helpers"`

	// Grids expand into helpers via cartesian product, after Helpers.
	Grids []GridConfig `yaml:"grids"`

	// HelperServer configures the built-in /helper endpoint.
	HelperServer HelperServerConfig `yaml:"helper_server"`

	// History enables the SQLite discovery log.
	History HistoryConfig `yaml:"history"`

	// Pages are the dashboard pages and their breadcrumb trails.
	Pages []PageConfig `yaml:"pages"`
}

// AppConfig mirrors the application environment.
type AppConfig struct {
	// HealthCheckInterval is the time between discovery cycles.
	// Defaults to 30s.
	HealthCheckInterval Duration `yaml:"health_check_interval"`

	// Hosts maps host kinds to URLs. Only "rm" is used: the RM URL shown
	// until the first discovery succeeds.
	Hosts map[string]string `yaml:"hosts"`
}

// RMURL returns the configured app.hosts.rm value.
func (a AppConfig) RMURL() string {
	return a.Hosts["rm"]
}

// HelperConfig defines a single helper endpoint.
type HelperConfig struct {
	// Name identifies the helper in logs and history.
	Name string `yaml:"name"`

	// URL is an absolute http(s) URL or a path served by rmwatch itself,
	// such as "helper". Supports ${VAR} and ${VAR:-default}.
	URL string `yaml:"url"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with each request. Values support environment
	// variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Extractor reads the URL out of the response body.
	Extractor ExtractorConfig `yaml:"extractor"`
}

// GridConfig defines helpers generated from a URL template, typically one
// per ResourceManager host.
type GridConfig struct {
	// Name is the base name for generated helpers.
	Name string `yaml:"name"`

	// URLTemplate is a Go template; dimension keys are available as
	// {{.host}} and so on.
	URLTemplate string `yaml:"url_template"`

	// Dimensions maps dimension names to their values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// Timeout is the request timeout for all generated helpers.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent by all generated helpers.
	Headers map[string]string `yaml:"headers"`

	// Extractor applies to all generated helpers.
	Extractor ExtractorConfig `yaml:"extractor"`
}

// HelperServerConfig configures the built-in helper endpoint.
type HelperServerConfig struct {
	// Enabled serves /helper. It is implied when no helper is configured.
	Enabled bool `yaml:"enabled"`

	// Command is run through /bin/sh to find the RM URL.
	// Defaults to `maprcli urls -name resourcemanager`.
	Command string `yaml:"command"`

	// CommandTimeout bounds a single run of Command. Defaults to 15s.
	CommandTimeout Duration `yaml:"command_timeout"`

	// StaticURL, if set, is answered instead of running Command.
	StaticURL string `yaml:"static_url"`
}

// HistoryConfig enables the discovery log.
type HistoryConfig struct {
	// Path of the SQLite database. Empty disables history.
	Path string `yaml:"path"`

	// Limit is the number of rows kept. Defaults to 100.
	Limit int `yaml:"limit"`
}

// PageConfig defines a dashboard page.
type PageConfig struct {
	Name        string             `yaml:"name"`
	Breadcrumbs []BreadcrumbConfig `yaml:"breadcrumbs"`
}

// BreadcrumbConfig is one entry of a page trail.
type BreadcrumbConfig struct {
	Text  string `yaml:"text"`
	Route string `yaml:"route"`
}

// ExtractorConfig specifies how to read the RM URL from a helper response.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	extractor: text
//	extractor: json:active.url
//	extractor: regex:(http://\S+)
//
// Structured object:
//
//	extractor:
//	  type: json
//	  path: active.url
type ExtractorConfig struct {
	// Type is the extractor type: "text", "json" or "regex".
	Type string

	// Path is the JSON field path (for type: json).
	Path string

	// Pattern is the regular expression (for type: regex).
	Pattern string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for ExtractorConfig.
func (e *ExtractorConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return e.parseShorthand(s)
	case yaml.MappingNode:
		// a plain struct avoids recursing into this method
		var raw struct {
			Type    string `yaml:"type"`
			Path    string `yaml:"path"`
			Pattern string `yaml:"pattern"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		e.Type = raw.Type
		e.Path = raw.Path
		e.Pattern = raw.Pattern
		return nil
	}
	return fmt.Errorf("extractor must be a string or object, got %v", node.Kind)
}

// String returns the shorthand form accepted by rmwatch.ParseExtractor.
func (e ExtractorConfig) String() string {
	switch e.Type {
	case "json":
		return "json:" + e.Path
	case "regex":
		return "regex:" + e.Pattern
	}
	return e.Type
}

// parseShorthand parses "text", "json:path" and "regex:pattern".
func (e *ExtractorConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if kind, value, ok := strings.Cut(s, ":"); ok {
		e.Type = kind
		switch kind {
		case "json":
			e.Path = value
		case "regex":
			e.Pattern = value
		default:
			return fmt.Errorf("unknown extractor type %q", kind)
		}
		return nil
	}

	if s != "text" {
		return fmt.Errorf("unknown extractor %q (expected 'text', 'json:path', or 'regex:pattern')", s)
	}
	e.Type = s
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1: variable name
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value, possibly empty
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		name := sub[1]
		hasDefault := sub[2] != ""

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, URL templates, header values,
// the RM host and the helper server settings. Defaults are applied for Port
// (8080), the health check interval (30s) and the history limit (100).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.App.HealthCheckInterval == 0 {
		cfg.App.HealthCheckInterval = Duration(defaultHealthCheckInterval)
	}
	if cfg.History.Path != "" && cfg.History.Limit == 0 {
		cfg.History.Limit = defaultHistoryLimit
	}
	if len(cfg.Helpers) == 0 && len(cfg.Grids) == 0 {
		cfg.HelperServer.Enabled = true
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.App.HealthCheckInterval.Duration() < minHealthCheckInterval {
		return fmt.Errorf("app.health_check_interval must be at least %s, got %s",
			minHealthCheckInterval, c.App.HealthCheckInterval.Duration())
	}

	if rm, ok := c.App.Hosts["rm"]; ok {
		expanded, err := expandEnvVars(rm)
		if err != nil {
			return fmt.Errorf("app.hosts.rm: %w", err)
		}
		if err := validateAbsoluteURL(expanded); err != nil {
			return fmt.Errorf("app.hosts.rm: %w", err)
		}
		c.App.Hosts["rm"] = expanded
	}

	names := make(map[string]struct{}, len(c.Helpers))
	for i := range c.Helpers {
		h := &c.Helpers[i]
		ctx := fmt.Sprintf("helpers[%d] (%s)", i, h.Name)

		if h.Name == "" {
			return fmt.Errorf("helpers[%d]: name is required", i)
		}
		if _, dup := names[h.Name]; dup {
			return fmt.Errorf("%s: duplicate name", ctx)
		}
		names[h.Name] = struct{}{}

		if h.URL == "" {
			return fmt.Errorf("%s: url is required", ctx)
		}
		expanded, err := expandEnvVars(h.URL)
		if err != nil {
			return fmt.Errorf("%s: url: %w", ctx, err)
		}
		h.URL = expanded

		relative, err := isRelativeURL(h.URL)
		if err != nil {
			return fmt.Errorf("%s: invalid url: %w", ctx, err)
		}
		if relative {
			if !c.HelperServer.Enabled {
				return fmt.Errorf("%s: relative url %q requires helper_server.enabled", ctx, h.URL)
			}
		} else if err := validateAbsoluteURL(h.URL); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if err := expandHeaders(h.Headers, ctx); err != nil {
			return err
		}
		if err := validateTimeout(h.Timeout, ctx); err != nil {
			return err
		}
		if err := validateExtractor(&h.Extractor, ctx); err != nil {
			return err
		}
	}

	for i := range c.Grids {
		g := &c.Grids[i]
		ctx := fmt.Sprintf("grids[%d] (%s)", i, g.Name)

		if g.Name == "" {
			return fmt.Errorf("grids[%d]: name is required", i)
		}
		if g.URLTemplate == "" {
			return fmt.Errorf("%s: url_template is required", ctx)
		}
		expanded, err := expandEnvVars(g.URLTemplate)
		if err != nil {
			return fmt.Errorf("%s: url_template: %w", ctx, err)
		}
		g.URLTemplate = expanded

		if _, err := template.New("").Parse(g.URLTemplate); err != nil {
			return fmt.Errorf("%s: invalid url_template: %w", ctx, err)
		}

		if len(g.Dimensions) == 0 {
			return fmt.Errorf("%s: at least one dimension is required", ctx)
		}
		for dim, values := range g.Dimensions {
			if len(values) == 0 {
				return fmt.Errorf("%s: dimension %q has no values", ctx, dim)
			}
			seen := make(map[string]struct{}, len(values))
			for _, v := range values {
				if _, dup := seen[v]; dup {
					return fmt.Errorf("%s: dimension %q has duplicate value %q", ctx, dim, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := expandHeaders(g.Headers, ctx); err != nil {
			return err
		}
		if err := validateTimeout(g.Timeout, ctx); err != nil {
			return err
		}
		if err := validateExtractor(&g.Extractor, ctx); err != nil {
			return err
		}
	}

	if err := c.validateHelperServer(); err != nil {
		return err
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("history.limit cannot be negative, got %d", c.History.Limit)
	}

	pages := make(map[string]struct{}, len(c.Pages))
	for i, p := range c.Pages {
		if p.Name == "" {
			return fmt.Errorf("pages[%d]: name is required", i)
		}
		if _, dup := pages[p.Name]; dup {
			return fmt.Errorf("pages[%d] (%s): duplicate name", i, p.Name)
		}
		pages[p.Name] = struct{}{}

		for j, b := range p.Breadcrumbs {
			if b.Text == "" {
				return fmt.Errorf("pages[%d] (%s): breadcrumbs[%d]: text is required", i, p.Name, j)
			}
		}
	}

	return nil
}

func (c *Config) validateHelperServer() error {
	hs := &c.HelperServer

	expanded, err := expandEnvVars(hs.Command)
	if err != nil {
		return fmt.Errorf("helper_server.command: %w", err)
	}
	hs.Command = expanded

	if hs.CommandTimeout.Duration() < 0 {
		return fmt.Errorf("helper_server.command_timeout cannot be negative, got %s", hs.CommandTimeout.Duration())
	}

	if hs.StaticURL != "" {
		expanded, err := expandEnvVars(hs.StaticURL)
		if err != nil {
			return fmt.Errorf("helper_server.static_url: %w", err)
		}
		if err := validateAbsoluteURL(expanded); err != nil {
			return fmt.Errorf("helper_server.static_url: %w", err)
		}
		hs.StaticURL = expanded
	}
	return nil
}

func expandHeaders(headers map[string]string, ctx string) error {
	for k, v := range headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s: headers[%s]: %w", ctx, k, err)
		}
		headers[k] = expanded
	}
	return nil
}

func validateTimeout(d Duration, ctx string) error {
	if d == 0 {
		return nil
	}
	if d.Duration() < time.Second {
		return fmt.Errorf("%s: timeout must be at least 1s if specified, got %s", ctx, d.Duration())
	}
	return nil
}

func isRelativeURL(raw string) (bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return false, err
	}
	return u.Scheme == "" && u.Host == "", nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}

// validateExtractor validates an extractor configuration.
func validateExtractor(e *ExtractorConfig, ctx string) error {
	switch e.Type {
	case "", "text":
	case "json":
		if e.Path == "" {
			return fmt.Errorf("%s: extractor type 'json' requires a path", ctx)
		}
	case "regex":
		if e.Pattern == "" {
			return fmt.Errorf("%s: extractor type 'regex' requires a pattern", ctx)
		}
		if _, err := regexp.Compile(e.Pattern); err != nil {
			return fmt.Errorf("%s: invalid extractor pattern: %w", ctx, err)
		}
	default:
		return fmt.Errorf("%s: unknown extractor type %q", ctx, e.Type)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
