package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/rmwatch"
)

func main() {
	// start mock helpers (see mock_server.go)
	go StartMockHelpers(":9999")
	time.Sleep(100 * time.Millisecond)

	// one helper per RM host, tried in order
	helpers, err := rmwatch.NewHelperGrid("rm",
		rmwatch.WithURLTemplate("http://localhost:9999/{{.host}}/helper"),
		rmwatch.WithDimensions(map[string][]string{
			"host": {"rm1", "rm2"},
		}),
		rmwatch.WithGridTimeout(2*time.Second),
		rmwatch.WithGridExtractor(rmwatch.JSONFieldExtractor("url")),
	)
	if err != nil {
		slog.Error("failed to create helper grid", "error", err)
		os.Exit(1)
	}

	w, err := rmwatch.New(
		rmwatch.WithHelpers(helpers...),
		rmwatch.WithRMURL("http://rm1.example.com:8088"),
		rmwatch.WithHealthCheckInterval(5*time.Second),
		rmwatch.WithPollOnStart(true),
		rmwatch.WithPort(8080),
		rmwatch.WithHistory("rmwatch-example.db", 200),
		rmwatch.WithDiscoveryCallback(func(d rmwatch.Discovery) {
			if d.Changed {
				slog.Info("watcher followed failover", "url", d.URL, "helper", d.Helper)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  rmwatch demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Two mock RMs fail over every 20-60s; the dashboard follows.")
	fmt.Println("  History: http://localhost:8080/api/history")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		slog.Error("rmwatch error", "error", err)
		os.Exit(1)
	}
}
