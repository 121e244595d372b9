// Package main is the entry point for the rmwatch CLI.
//
// rmwatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	rmwatch serve -c config.yaml                        # Start the dashboard
//	rmwatch validate -c config.yaml                     # Validate configuration
//	rmwatch helper                                      # Print the active RM URL
//	rmwatch conf security --path tez-site.xml --security maprsasl
//	rmwatch version                                     # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only shows help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "rmwatch",
	Short: "Track the active YARN ResourceManager web URL",
	Long: `rmwatch keeps the YARN ResourceManager (RM) web URL current on clusters
where the RM fails over between hosts.

It asks one or more helper endpoints for the active RM URL at a fixed
health-check interval and shows the result in a web UI with Server-Sent
Events for live updates. rmwatch can also serve the helper itself, backed
by "maprcli urls -name resourcemanager".

Quick start:
  1. Create a config file (rmwatch.yaml)
  2. Run: rmwatch serve -c rmwatch.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  app:
    health_check_interval: 30s
    hosts:
      rm: http://rm1.example.com:8088
  helper_server:
    enabled: true`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this rmwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rmwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
