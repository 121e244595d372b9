package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// haPair simulates two ResourceManagers that fail over between each other.
type haPair struct {
	mu           sync.Mutex
	active       string
	nextFailover time.Time
}

func (p *haPair) current() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Now().After(p.nextFailover) {
		prev := p.active
		if p.active == "rm1" {
			p.active = "rm2"
		} else {
			p.active = "rm1"
		}
		// next failover in 20-60 seconds
		p.nextFailover = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
		if prev != "" {
			slog.Info("resourcemanager failover", "from", prev, "to", p.active)
		}
	}
	return p.active
}

// StartMockHelpers serves one helper per RM host at /{host}/helper. Only
// the active host answers; the standby returns 503 so the watcher fails
// over to the next helper.
// Call this in a goroutine before starting the watcher.
func StartMockHelpers(addr string) {
	pair := &haPair{}

	http.HandleFunc("/{host}/helper", func(w http.ResponseWriter, r *http.Request) {
		host := r.PathValue("host")

		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		if host != pair.current() {
			http.Error(w, "standby", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"host":   host,
			"active": true,
			"url":    "http://" + host + ".example.com:8088",
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
