package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rmwatch/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an rmwatch configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  rmwatch validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Helpers)
	fromGrids := 0
	for _, g := range cfg.Grids {
		size := 1
		for _, vals := range g.Dimensions {
			size *= len(vals)
		}
		fromGrids += size
	}
	if direct+fromGrids == 0 {
		direct = 1 // built-in helper
	}

	rm := cfg.App.RMURL()
	if rm == "" {
		rm = "(discovered)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:           %d\n", cfg.Port)
	fmt.Fprintf(out, "  Check interval: %s\n", cfg.App.HealthCheckInterval.Duration())
	fmt.Fprintf(out, "  RM URL:         %s\n", rm)
	fmt.Fprintf(out, "  Helpers:        %d direct + %d from grids = %d total\n",
		direct, fromGrids, direct+fromGrids)
	fmt.Fprintf(out, "  Helper server:  %t\n", cfg.HelperServer.Enabled)

	return nil
}
