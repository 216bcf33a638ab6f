package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sinamoghaddas/hpilo-exporter/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an exporter configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  hpilo-exporter validate -c exporter.yaml`,
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

	telemetry := cfg.TelemetryPath
	if telemetry == "" {
		telemetry = "disabled"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Listen:     %s:%d%s\n", cfg.Address, cfg.Port, cfg.Endpoint)
	fmt.Printf("  Telemetry:  %s\n", telemetry)
	fmt.Printf("  Workers:    %d\n", cfg.Workers)
	fmt.Printf("  Timeout:    %s\n", cfg.Timeout.Duration())
	fmt.Printf("  Skip TLS:   %t\n", cfg.SkipVerify())
	fmt.Printf("  Logging:    %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)

	return nil
}
