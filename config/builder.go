package config

import (
	"fmt"
	"io"
	"log/slog"

	hpiloexporter "github.com/sinamoghaddas/hpilo-exporter"
)

// BuildOptions converts parsed configuration into exporter options.
//
// The logger is passed through unchanged; build it with [NewLogger].
func BuildOptions(cfg *Config, logger *slog.Logger) []hpiloexporter.Option {
	opts := []hpiloexporter.Option{
		hpiloexporter.WithAddress(cfg.Address),
		hpiloexporter.WithPort(cfg.Port),
		hpiloexporter.WithEndpoint(cfg.Endpoint),
		hpiloexporter.WithWorkers(cfg.Workers),
		hpiloexporter.WithTimeout(cfg.Timeout.Duration()),
		hpiloexporter.WithInsecureSkipVerify(cfg.SkipVerify()),
	}

	if cfg.TelemetryPath != "" {
		opts = append(opts, hpiloexporter.WithTelemetryPath(cfg.TelemetryPath))
	}

	if logger != nil {
		opts = append(opts, hpiloexporter.WithLogger(logger))
	}

	return opts
}

// NewLogger creates a slog logger writing to w with the configured level
// and format.
func NewLogger(w io.Writer, lc LoggingConfig) (*slog.Logger, error) {
	level, err := parseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch lc.Format {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json or text)", lc.Format)
	}
}

// parseLevel maps a level name to a slog level. Empty means info.
func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", s)
	}
}
