// Package main is the entry point for the hpilo-exporter CLI.
//
// The exporter can be embedded as a library or run as a standalone binary
// configured by flags and an optional YAML file. This CLI provides the
// standalone binary.
//
// Usage:
//
//	hpilo-exporter serve                       # Start with defaults
//	hpilo-exporter serve -c exporter.yaml      # Start from a config file
//	hpilo-exporter validate -c exporter.yaml   # Validate configuration
//	hpilo-exporter version                     # Show version info
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

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "hpilo-exporter",
	Short: "Prometheus exporter for HPE iLO health",
	Long: `hpilo-exporter serves the health of HPE iLO management controllers
as Prometheus metrics.

Each scrape names the controller to poll in its query string:

  /metrics?ilo_host=10.0.0.5&ilo_port=443&ilo_user=monitor&ilo_password=secret

Parameters left out fall back to ILO_HOST, ILO_PORT, ILO_USER,
ILO_PASSWORD and ILO_CACHED. Add ilo_cached=true to answer from the last
successful poll while a background refresh runs.

Quick start:
  1. Run: hpilo-exporter serve --port 9416
  2. Open http://localhost:9416 in your browser`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this hpilo-exporter binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hpilo-exporter %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
