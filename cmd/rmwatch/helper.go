package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rmwatch"
	"github.com/jpalmerr/rmwatch/config"
)

// helperCmd prints what the built-in helper endpoint would answer.
var helperCmd = &cobra.Command{
	Use:   "helper",
	Short: "Print the active RM URL as the built-in helper sees it",
	Long: `Run the built-in helper once and print its answer.

Without flags this runs "maprcli urls -name resourcemanager". The helper
settings can come from a config file or from flags; flags win.

Example:
  rmwatch helper
  rmwatch helper -c config.yaml
  rmwatch helper --command "cat /etc/rm-url"`,
	RunE: runHelper,
}

func init() {
	rootCmd.AddCommand(helperCmd)

	helperCmd.Flags().StringP("config", "c", "", "path to config file")
	helperCmd.Flags().String("command", "", "command printing the RM URL")
	helperCmd.Flags().String("static", "", "answer this URL instead of running a command")
	helperCmd.Flags().Duration("timeout", 0, "command timeout (default 15s)")
}

func runHelper(cmd *cobra.Command, args []string) error {
	var hs config.HelperServerConfig

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		hs = cfg.HelperServer
	}

	if cmd.Flags().Changed("command") {
		hs.Command, _ = cmd.Flags().GetString("command")
		hs.StaticURL = ""
	}
	if cmd.Flags().Changed("static") {
		hs.StaticURL, _ = cmd.Flags().GetString("static")
	}
	if cmd.Flags().Changed("timeout") {
		d, _ := cmd.Flags().GetDuration("timeout")
		hs.CommandTimeout = config.Duration(d)
	}

	resolver := config.BuildResolver(hs)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	url, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("helper failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)

	if !rmwatch.IsValidURL(url) {
		return fmt.Errorf("%s helper answered %q", rmwatch.OutOfReachMessage, url)
	}
	return nil
}
