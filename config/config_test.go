package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte("title: Tez UI\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.App.HealthCheckInterval.Duration() != 30*time.Second {
		t.Errorf("HealthCheckInterval = %v, want 30s", cfg.App.HealthCheckInterval.Duration())
	}
	if !cfg.HelperServer.Enabled {
		t.Error("HelperServer.Enabled = false without helpers, want implied")
	}
	if cfg.History.Limit != 0 {
		t.Errorf("History.Limit = %d without a path, want 0", cfg.History.Limit)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Tez UI
port: 9090
poll_on_start: true
app:
  health_check_interval: 1m
  hosts:
    rm: http://rm1.example.com:8088
helpers:
  - name: local
    url: helper
    timeout: 5s
    headers:
      X-Token: abc
    extractor: json:active.url
helper_server:
  enabled: true
  command: cat /etc/rm-url
  command_timeout: 3s
history:
  path: rmwatch.db
pages:
  - name: status
    breadcrumbs:
      - {text: Home, route: /}
      - {text: ResourceManager}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 9090 || cfg.Title != "Tez UI" || !cfg.PollOnStart {
		t.Errorf("top level = %+v", cfg)
	}
	if cfg.App.HealthCheckInterval.Duration() != time.Minute {
		t.Errorf("HealthCheckInterval = %v, want 1m", cfg.App.HealthCheckInterval.Duration())
	}
	if cfg.App.RMURL() != "http://rm1.example.com:8088" {
		t.Errorf("RMURL() = %q", cfg.App.RMURL())
	}

	h := cfg.Helpers[0]
	if h.URL != "helper" || h.Timeout.Duration() != 5*time.Second || h.Headers["X-Token"] != "abc" {
		t.Errorf("helper = %+v", h)
	}
	if h.Extractor.Type != "json" || h.Extractor.Path != "active.url" {
		t.Errorf("Extractor = %+v", h.Extractor)
	}

	if cfg.HelperServer.Command != "cat /etc/rm-url" || cfg.HelperServer.CommandTimeout.Duration() != 3*time.Second {
		t.Errorf("HelperServer = %+v", cfg.HelperServer)
	}
	if cfg.History.Path != "rmwatch.db" || cfg.History.Limit != 100 {
		t.Errorf("History = %+v, want default limit", cfg.History)
	}
	if len(cfg.Pages) != 1 || len(cfg.Pages[0].Breadcrumbs) != 2 || cfg.Pages[0].Breadcrumbs[0].Route != "/" {
		t.Errorf("Pages = %+v", cfg.Pages)
	}
}

func TestParse_GridConfig(t *testing.T) {
	yaml := `
grids:
  - name: rm
    url_template: "http://{{.host}}:8090/helper"
    timeout: 2s
    dimensions:
      host: [rm1.example.com, rm2.example.com]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	g := cfg.Grids[0]
	if len(g.Dimensions["host"]) != 2 {
		t.Errorf("Dimensions = %v", g.Dimensions)
	}
	if cfg.HelperServer.Enabled {
		t.Error("HelperServer.Enabled implied although grids are configured")
	}
}

func TestParse_ExtractorShorthand(t *testing.T) {
	tests := []struct {
		name        string
		extractor   string
		wantType    string
		wantPath    string
		wantPattern string
		wantErr     bool
	}{
		{"text", "text", "text", "", "", false},
		{"json", "json:active.url", "json", "active.url", "", false},
		{"regex", `'regex:(http://\S+)'`, "regex", "", `(http://\S+)`, false},
		{"regex with colon", `'regex:(https?://[^:]+:\d+)'`, "regex", "", `(https?://[^:]+:\d+)`, false},
		{"unknown kind", "contains:ok", "", "", "", true},
		{"unknown bare", "status", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "helpers:\n  - name: h\n    url: http://h:8090/\n    extractor: " + tt.extractor + "\n"
			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Error("Parse() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			e := cfg.Helpers[0].Extractor
			if e.Type != tt.wantType || e.Path != tt.wantPath || e.Pattern != tt.wantPattern {
				t.Errorf("Extractor = %+v", e)
			}
		})
	}
}

func TestParse_ExtractorStructured(t *testing.T) {
	yaml := `
helpers:
  - name: h
    url: http://h:8090/
    extractor:
      type: regex
      pattern: "url=(\\S+)"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	e := cfg.Helpers[0].Extractor
	if e.Type != "regex" || e.Pattern != `url=(\S+)` {
		t.Errorf("Extractor = %+v", e)
	}
	if e.String() != `regex:url=(\S+)` {
		t.Errorf("String() = %q", e.String())
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("RMWATCH_TEST_HOST", "rm9.example.com")
	t.Setenv("RMWATCH_TEST_TOKEN", "s3cret")

	yaml := `
app:
  hosts:
    rm: http://${RMWATCH_TEST_HOST}:8088
helpers:
  - name: h
    url: http://${RMWATCH_TEST_HOST}:8090/helper
    headers:
      Authorization: Bearer ${RMWATCH_TEST_TOKEN}
grids:
  - name: g
    url_template: "http://${RMWATCH_TEST_HOST}/{{.path}}"
    dimensions:
      path: [a]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.App.RMURL() != "http://rm9.example.com:8088" {
		t.Errorf("RMURL() = %q", cfg.App.RMURL())
	}
	if cfg.Helpers[0].URL != "http://rm9.example.com:8090/helper" {
		t.Errorf("URL = %q", cfg.Helpers[0].URL)
	}
	if cfg.Helpers[0].Headers["Authorization"] != "Bearer s3cret" {
		t.Errorf("Authorization = %q", cfg.Helpers[0].Headers["Authorization"])
	}
	if cfg.Grids[0].URLTemplate != "http://rm9.example.com/{{.path}}" {
		t.Errorf("URLTemplate = %q", cfg.Grids[0].URLTemplate)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
helpers:
  - name: h
    url: http://${RMWATCH_TEST_UNSET_VAR}/helper
`
	_, err := Parse([]byte(yaml))
	if err == nil || !strings.Contains(err.Error(), "RMWATCH_TEST_UNSET_VAR") {
		t.Errorf("Parse() error = %v, want missing variable", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RMWATCH_SET", "value")
	t.Setenv("RMWATCH_EMPTY", "")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "plain", false},
		{"${RMWATCH_SET}", "value", false},
		{"a-${RMWATCH_SET}-b", "a-value-b", false},
		{"${RMWATCH_EMPTY:-fallback}", "", false},
		{"${RMWATCH_NOPE:-fallback}", "fallback", false},
		{"${RMWATCH_NOPE:-}", "", false},
		{"${RMWATCH_NOPE}", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := expandEnvVars(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expandEnvVars() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "port out of range",
			yaml:    "port: 70000\n",
			wantErr: "port must be between",
		},
		{
			name:    "interval too short",
			yaml:    "app:\n  health_check_interval: 10ms\n",
			wantErr: "app.health_check_interval must be at least",
		},
		{
			name:    "rm host without scheme",
			yaml:    "app:\n  hosts:\n    rm: rm1:8088\n",
			wantErr: "app.hosts.rm",
		},
		{
			name:    "helper without name",
			yaml:    "helpers:\n  - url: http://h/\n",
			wantErr: "helpers[0]: name is required",
		},
		{
			name:    "helper without url",
			yaml:    "helpers:\n  - name: h\n",
			wantErr: "helpers[0] (h): url is required",
		},
		{
			name:    "duplicate helper",
			yaml:    "helpers:\n  - name: h\n    url: http://a/\n  - name: h\n    url: http://b/\n",
			wantErr: "helpers[1] (h): duplicate name",
		},
		{
			name:    "relative helper without helper server",
			yaml:    "helpers:\n  - name: h\n    url: helper\n",
			wantErr: "requires helper_server.enabled",
		},
		{
			name:    "ftp helper",
			yaml:    "helpers:\n  - name: h\n    url: ftp://h/\n",
			wantErr: "url scheme must be http or https",
		},
		{
			name:    "helper timeout too short",
			yaml:    "helpers:\n  - name: h\n    url: http://h/\n    timeout: 100ms\n",
			wantErr: "timeout must be at least 1s",
		},
		{
			name:    "json extractor without path",
			yaml:    "helpers:\n  - name: h\n    url: http://h/\n    extractor: {type: json}\n",
			wantErr: "requires a path",
		},
		{
			name:    "invalid regex",
			yaml:    "helpers:\n  - name: h\n    url: http://h/\n    extractor: 'regex:(unclosed'\n",
			wantErr: "invalid extractor pattern",
		},
		{
			name:    "grid without template",
			yaml:    "grids:\n  - name: g\n    dimensions: {host: [a]}\n",
			wantErr: "grids[0] (g): url_template is required",
		},
		{
			name:    "grid bad template",
			yaml:    "grids:\n  - name: g\n    url_template: 'http://{{.host'\n    dimensions: {host: [a]}\n",
			wantErr: "invalid url_template",
		},
		{
			name:    "grid without dimensions",
			yaml:    "grids:\n  - name: g\n    url_template: 'http://{{.host}}/'\n",
			wantErr: "at least one dimension is required",
		},
		{
			name:    "grid duplicate value",
			yaml:    "grids:\n  - name: g\n    url_template: 'http://{{.host}}/'\n    dimensions: {host: [a, a]}\n",
			wantErr: `duplicate value "a"`,
		},
		{
			name:    "static url invalid",
			yaml:    "helper_server:\n  static_url: rm1:8088\n",
			wantErr: "helper_server.static_url",
		},
		{
			name:    "negative history limit",
			yaml:    "history:\n  path: h.db\n  limit: -1\n",
			wantErr: "history.limit cannot be negative",
		},
		{
			name:    "page without name",
			yaml:    "pages:\n  - breadcrumbs: [{text: Home}]\n",
			wantErr: "pages[0]: name is required",
		},
		{
			name:    "duplicate page",
			yaml:    "pages:\n  - name: status\n  - name: status\n",
			wantErr: "pages[1] (status): duplicate name",
		},
		{
			name:    "breadcrumb without text",
			yaml:    "pages:\n  - name: status\n    breadcrumbs: [{route: /}]\n",
			wantErr: "breadcrumbs[0]: text is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("port: [unclosed")); err == nil {
		t.Error("Parse() error = nil for invalid YAML")
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("app:\n  health_check_interval: soon\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("Parse() error = %v, want invalid duration", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rmwatch.yaml")
	if err := os.WriteFile(path, []byte("port: 9191\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() error = nil for missing file")
	}
}
