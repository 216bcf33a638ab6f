package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	hpiloexporter "github.com/sinamoghaddas/hpilo-exporter"
	"github.com/sinamoghaddas/hpilo-exporter/config"
)

// shutdownMargin is added to the exporter's drain time before a stalled
// shutdown is abandoned.
const shutdownMargin = 5 * time.Second

// shutdownTimeout returns how long to wait for exp to stop after a signal.
func shutdownTimeout(exp *hpiloexporter.Exporter) time.Duration {
	return exp.DrainTimeout() + shutdownMargin
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the exporter",
	Long: `Start the HP iLO exporter.

Settings come from the optional config file, then from flags, which take
precedence. Without either, the exporter listens on 0.0.0.0:9416 and
serves scrapes at /metrics.

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  hpilo-exporter serve --port 9416 --workers 4
  hpilo-exporter serve -c /etc/hpilo-exporter/exporter.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringP("config", "c", "", "path to config file")
	f.String("address", config.DefaultAddress, "address to listen on")
	f.Int("port", config.DefaultPort, "port to listen on")
	f.String("endpoint", config.DefaultEndpoint, "path that serves scrapes")
	f.String("telemetry-path", "", "path that serves the exporter's own metrics (disabled if empty)")
	f.Int("workers", config.DefaultWorkers, "maximum concurrent iLO polls")
	f.Duration("timeout", config.DefaultTimeout, "timeout for a single iLO poll")
	f.Bool("insecure-skip-verify", true, "skip TLS certificate verification against iLOs")
	f.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	f.String("log-format", config.DefaultLogFormat, "log format: json or text")
}

// loadServeConfig builds the effective configuration from the config file
// and any flags set explicitly on the command line.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if configFile, _ := f.GetString("config"); configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if f.Changed("address") {
		cfg.Address, _ = f.GetString("address")
	}
	if f.Changed("port") {
		cfg.Port, _ = f.GetInt("port")
	}
	if f.Changed("endpoint") {
		cfg.Endpoint, _ = f.GetString("endpoint")
	}
	if f.Changed("telemetry-path") {
		cfg.TelemetryPath, _ = f.GetString("telemetry-path")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("timeout") {
		d, _ := f.GetDuration("timeout")
		cfg.Timeout = config.Duration(d)
	}
	if f.Changed("insecure-skip-verify") {
		skip, _ := f.GetBool("insecure-skip-verify")
		cfg.InsecureSkipVerify = &skip
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Logging.Format, _ = f.GetString("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(os.Stderr, cfg.Logging)
	if err != nil {
		return err
	}

	exp, err := hpiloexporter.New(config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	logger.Info("config loaded",
		"version", version,
		"workers", cfg.Workers,
		"timeout", cfg.Timeout.Duration().String(),
		"insecure_skip_verify", cfg.SkipVerify(),
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- exp.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout(exp)):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout(exp).String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
