package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestAwaitShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	errChan := make(chan error, 1)
	errChan <- nil
	if err := awaitShutdown(context.Background(), errChan, logger); err != nil {
		t.Errorf("awaitShutdown() error = %v, want nil", err)
	}

	errChan <- errors.New("bind failed")
	err := awaitShutdown(context.Background(), errChan, logger)
	if err == nil || !strings.Contains(err.Error(), "server error: bind failed") {
		t.Errorf("awaitShutdown() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go func() { errChan <- nil }()
	if err := awaitShutdown(ctx, errChan, logger); err != nil {
		t.Errorf("awaitShutdown() after cancel error = %v", err)
	}
}

func TestRunServe_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "port: 0\napp:\n  health_check_interval: 1ms\n")

	_, err := executeCmd(t, "serve", "-c", path)
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Errorf("serve error = %v, want config error", err)
	}
}
