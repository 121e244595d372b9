// Standalone mock helper server for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/rmwatch serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

func main() {
	fmt.Println("Mock helper server starting on :9999")
	fmt.Println("GET /helper answers the active RM URL as plain text")
	fmt.Println("The active RM flips between rm1 and rm2 every 20-60s")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu           sync.Mutex
		active       = "rm1"
		nextFailover = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
	)

	http.HandleFunc("GET /helper", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		mu.Lock()
		if time.Now().After(nextFailover) {
			prev := active
			if active == "rm1" {
				active = "rm2"
			} else {
				active = "rm1"
			}
			nextFailover = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
			slog.Info("resourcemanager failover", "from", prev, "to", active)
		}
		host := active
		mu.Unlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		// mimic `maprcli urls` output, whose second line is the URL
		fmt.Fprintf(w, "url\nhttp://%s.example.com:8088\n", host)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
