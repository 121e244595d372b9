package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rmwatch"
	"github.com/jpalmerr/rmwatch/config"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts the rmwatch dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the rmwatch dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Ask the configured helpers for the active RM URL every health-check interval
  - Serve the dashboard UI (and /helper, if enabled) on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  rmwatch serve -c config.yaml
  rmwatch serve --config /etc/rmwatch/config.yaml --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("debug", false, "log at debug level")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"helpers", len(cfg.Helpers),
		"grids", len(cfg.Grids),
		"helper_server", cfg.HelperServer.Enabled,
		"history", cfg.History.Path != "",
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts,
		rmwatch.WithLogger(logger),
		rmwatch.WithDiscoveryCallback(func(d rmwatch.Discovery) {
			if d.Changed {
				logger.Info("resourcemanager moved", "url", d.URL, "helper", d.Helper)
			}
		}),
	)

	w, err := rmwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	return awaitShutdown(ctx, errChan, logger)
}

// awaitShutdown waits for Start to return. Once ctx is cancelled it gives
// the watcher shutdownTimeout to drain before giving up.
func awaitShutdown(ctx context.Context, errChan <-chan error, logger *slog.Logger) error {
	var timeout <-chan time.Time

	for {
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-ctx.Done():
			timeout = time.After(shutdownTimeout)
			// Background has a nil Done channel, so this case fires once
			ctx = context.Background()
		case <-timeout:
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
