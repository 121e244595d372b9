package rmwatch

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

func mustHelper(t *testing.T, name, url string, opts ...HelperOption) Helper {
	t.Helper()
	h, err := NewHelper(name, url, opts...)
	if err != nil {
		t.Fatalf("NewHelper() error = %v", err)
	}
	return h
}

func TestNew_Defaults(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	helpers := w.Helpers()
	if len(helpers) != 1 || helpers[0].URL() != DefaultHelperPath {
		t.Errorf("Helpers() = %v, want the built-in helper", helpers)
	}
	if !w.HelperServerEnabled() {
		t.Error("helper server disabled by default")
	}
	if w.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", w.Port())
	}
	if w.HealthCheckInterval() != 30*time.Second {
		t.Errorf("HealthCheckInterval() = %v, want 30s", w.HealthCheckInterval())
	}
	if len(w.pages) != 1 || w.pages[0].name != "status" {
		t.Errorf("pages = %v, want default status page", w.pages)
	}
}

func TestNew_DuplicateHelperNames(t *testing.T) {
	_, err := New(
		WithHelper(mustHelper(t, "rm", "http://rm1:8090/helper")),
		WithHelper(mustHelper(t, "rm", "http://rm2:8090/helper")),
	)
	if err == nil || !strings.Contains(err.Error(), "duplicate helper name") {
		t.Errorf("New() error = %v, want duplicate helper name", err)
	}
}

func TestNew_RelativeHelperNeedsHelperServer(t *testing.T) {
	_, err := New(WithHelper(mustHelper(t, "local", "helper")))
	if err == nil || !strings.Contains(err.Error(), "helper server is disabled") {
		t.Errorf("New() error = %v, want helper server error", err)
	}

	_, err = New(
		WithHelper(mustHelper(t, "local", "helper")),
		WithHelperServer(StaticResolver("http://rm1:8088")),
	)
	if err != nil {
		t.Errorf("New() with helper server error = %v", err)
	}
}

func TestNew_InvalidRMURL(t *testing.T) {
	for _, u := range []string{"rm1:8088", "http://", "http://rm 1:8088"} {
		if _, err := New(WithRMURL(u)); err == nil {
			t.Errorf("New(WithRMURL(%q)) error = nil", u)
		}
	}
	if _, err := New(WithRMURL("http://rm1:8088")); err != nil {
		t.Errorf("New(WithRMURL(valid)) error = %v", err)
	}
}

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero interval", WithHealthCheckInterval(0)},
		{"negative interval", WithHealthCheckInterval(-time.Second)},
		{"port zero", WithPort(0)},
		{"port too large", WithPort(65536)},
		{"nil logger", WithLogger(nil)},
		{"nil resolver", WithHelperServer(nil)},
		{"empty history path", WithHistory("", 10)},
		{"negative history limit", WithHistory("h.db", -1)},
		{"empty page name", WithPage("")},
		{"nil clock", WithClock(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opt); err == nil {
				t.Error("New() error = nil, want validation error")
			}
		})
	}
}

func TestWithPage(t *testing.T) {
	w, err := New(
		WithPage("status", Breadcrumb{Text: "Home", Route: "/"}),
		WithPage("history", Breadcrumb{Text: "Home", Route: "/"}, Breadcrumb{Text: "History"}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(w.pages) != 2 || len(w.pages[1].breadcrumbs) != 2 {
		t.Errorf("pages = %+v", w.pages)
	}

	if _, err := New(WithPage("status"), WithPage("status")); err == nil {
		t.Error("New() error = nil for duplicate page")
	}
}

func TestWithDiscoveryCallback_NilIgnored(t *testing.T) {
	w, err := New(WithDiscoveryCallback(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(w.discoveryCallbacks) != 0 {
		t.Errorf("len(callbacks) = %d, want 0", len(w.discoveryCallbacks))
	}
}

func TestWithLogger_Used(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	w, err := New(WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if w.logger != logger {
		t.Error("custom logger not used")
	}
}

func TestWithClock_Used(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	w, err := New(WithClock(clk))
	if err != nil {
		t.Fatal(err)
	}
	if w.clock != clk {
		t.Error("custom clock not used")
	}
}

func TestWatcher_HelpersReturnsCopy(t *testing.T) {
	w, err := New(WithHelper(mustHelper(t, "rm", "http://rm1:8090/helper")))
	if err != nil {
		t.Fatal(err)
	}

	helpers := w.Helpers()
	helpers[0] = Helper{}

	if w.Helpers()[0].Name() != "rm" {
		t.Error("Helpers() mutation affected watcher")
	}
}

func TestToPollerHelpers(t *testing.T) {
	w, err := New(
		WithPort(9999),
		WithHelperServer(StaticResolver("http://rm1:8088")),
		WithHelper(mustHelper(t, "local", "helper")),
		WithHelper(mustHelper(t, "remote", "http://rm2:8090/helper",
			WithHeaders("X-Token", "abc"),
			WithExtractor(JSONFieldExtractor("url")),
		)),
	)
	if err != nil {
		t.Fatal(err)
	}

	infos, err := w.toPollerHelpers()
	if err != nil {
		t.Fatalf("toPollerHelpers() error = %v", err)
	}
	if infos[0].URL != "http://localhost:9999/helper" {
		t.Errorf("relative helper resolved to %q", infos[0].URL)
	}
	if infos[0].Extractor != nil {
		t.Error("default extractor should stay nil")
	}
	if infos[1].URL != "http://rm2:8090/helper" || infos[1].Extractor == nil {
		t.Errorf("remote helper = %+v", infos[1])
	}

	// the poller copy must not alias helper headers
	infos[1].Headers["X-Token"] = "changed"
	if w.Helpers()[1].Headers()["X-Token"] != "abc" {
		t.Error("headers aliased between helper and poller info")
	}
}
