package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/rmwatch/internal/conftool"
)

// confCmd groups site-file editing commands.
var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Edit Tez site configuration",
}

// securityCmd configures shuffle encryption in tez-site.xml.
var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Configure shuffle SSL for a security mode",
	Long: `Configure shuffle encryption in a tez-site.xml for a cluster security mode.

  maprsasl  set tez.runtime.shuffle.ssl.enable and
            tez.runtime.shuffle.keep-alive.enabled to true
  none      remove both properties
  custom    leave the file untouched

Example:
  rmwatch conf security --path /opt/mapr/tez/conf/tez-site.xml --security maprsasl`,
	RunE: runSecurity,
}

func init() {
	rootCmd.AddCommand(confCmd)
	confCmd.AddCommand(securityCmd)

	securityCmd.Flags().String("path", "", "path to tez-site.xml (required)")
	securityCmd.Flags().String("security", "", "security mode: maprsasl, none or custom (required)")
	_ = securityCmd.MarkFlagRequired("path")
	_ = securityCmd.MarkFlagRequired("security")
}

func runSecurity(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	raw, _ := cmd.Flags().GetString("security")

	security, err := conftool.ParseSecurity(raw)
	if err != nil {
		return err
	}

	if err := conftool.SetEncryption(path, security, newLogger(false)); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s configured for %s security\n", path, security)
	return nil
}
