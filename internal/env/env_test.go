package env

import (
	"sync"
	"testing"
	"time"
)

func TestNew_RejectsNonPositiveInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := New(d, nil); err == nil {
			t.Errorf("New(%v) error = nil, want error", d)
		}
	}
}

func TestNew_CopiesHosts(t *testing.T) {
	hosts := map[string]string{HostRM: "http://rm1:8088"}
	e, err := New(time.Second, hosts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hosts[HostRM] = "http://mutated:8088"
	if got := e.Host(HostRM); got != "http://rm1:8088" {
		t.Errorf("Host(rm) = %q, want %q", got, "http://rm1:8088")
	}
}

func TestEnv_SetHost(t *testing.T) {
	e, _ := New(time.Second, nil)

	if !e.SetHost(HostRM, "http://rm1:8088") {
		t.Error("first SetHost() = false, want true")
	}
	if e.SetHost(HostRM, "http://rm1:8088") {
		t.Error("SetHost() with same value = true, want false")
	}
	if !e.SetHost(HostRM, "http://rm2:8088") {
		t.Error("SetHost() with new value = false, want true")
	}
	if got := e.Host(HostRM); got != "http://rm2:8088" {
		t.Errorf("Host(rm) = %q, want %q", got, "http://rm2:8088")
	}
}

func TestEnv_HostsReturnsCopy(t *testing.T) {
	e, _ := New(time.Second, map[string]string{HostRM: "http://rm1:8088"})

	hosts := e.Hosts()
	hosts[HostRM] = "changed"

	if got := e.Host(HostRM); got != "http://rm1:8088" {
		t.Errorf("Host(rm) = %q after mutating copy", got)
	}
}

func TestEnv_SetHealthCheckInterval(t *testing.T) {
	e, _ := New(time.Second, nil)

	e.SetHealthCheckInterval(5 * time.Second)
	if got := e.HealthCheckInterval(); got != 5*time.Second {
		t.Errorf("HealthCheckInterval() = %v, want 5s", got)
	}

	e.SetHealthCheckInterval(0)
	if got := e.HealthCheckInterval(); got != 5*time.Second {
		t.Errorf("HealthCheckInterval() = %v after zero, want 5s", got)
	}
}

func TestEnv_ConcurrentAccess(t *testing.T) {
	e, _ := New(time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.SetHost(HostRM, "http://rm:8088")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = e.Host(HostRM)
				_ = e.Hosts()
			}
		}()
	}
	wg.Wait()
}
