package hpiloexporter

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// exporterConfig holds mutable state during Exporter construction.
type exporterConfig struct {
	address       string
	port          int
	endpoint      string
	telemetryPath string
	workers       int
	timeout       time.Duration
	insecure      bool
	poller        Poller
	registry      *prometheus.Registry
	logger        *slog.Logger
}

// Option is a function that configures an [Exporter] instance during construction.
//
// Options return an error if validation fails.
type Option func(*exporterConfig) error

// WithAddress sets the interface the HTTP server binds to.
// Defaults to 0.0.0.0.
func WithAddress(address string) Option {
	return func(cfg *exporterConfig) error {
		cfg.address = address
		return nil
	}
}

// WithPort sets the HTTP port.
//
// Defaults to 9416 if not specified. Port 0 lets the operating system pick
// a free port; use [Exporter.Addr] to find it.
//
// Returns an error if the port is outside the range 0-65535.
func WithPort(port int) Option {
	return func(cfg *exporterConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithEndpoint sets the path that serves scrapes.
//
// Example:
//
//	exp, err := hpiloexporter.New(
//	    hpiloexporter.WithEndpoint("/ilo"),
//	)
//
// Returns an error unless the path starts with "/", is not "/" itself, and
// has no trailing slash or whitespace.
func WithEndpoint(path string) Option {
	return func(cfg *exporterConfig) error {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.endpoint = path
		return nil
	}
}

// WithTelemetryPath serves the exporter's own metrics (request latency,
// cache outcomes, pool occupancy, Go runtime) at path. Empty disables it,
// which is the default.
func WithTelemetryPath(path string) Option {
	return func(cfg *exporterConfig) error {
		if path == "" {
			cfg.telemetryPath = ""
			return nil
		}
		if err := validatePath(path); err != nil {
			return fmt.Errorf("telemetry path: %w", err)
		}
		cfg.telemetryPath = path
		return nil
	}
}

// WithWorkers sets how many backend polls may run at once across all
// targets. Defaults to 2.
//
// Returns an error if n is zero or negative.
func WithWorkers(n int) Option {
	return func(cfg *exporterConfig) error {
		if n <= 0 {
			return errors.New("workers must be positive")
		}
		cfg.workers = n
		return nil
	}
}

// WithTimeout bounds each backend poll end to end. Defaults to 10 seconds.
//
// Returns an error if d is outside 1s-5m.
func WithTimeout(d time.Duration) Option {
	return func(cfg *exporterConfig) error {
		if d < minTimeout || d > maxTimeout {
			return fmt.Errorf("timeout must be between %s and %s, got %s", minTimeout, maxTimeout, d)
		}
		cfg.timeout = d
		return nil
	}
}

// WithInsecureSkipVerify controls TLS certificate verification for the
// default poller. iLO certificates are self-signed out of the box, so
// verification is skipped unless this is set to false.
//
// Has no effect when combined with [WithPoller].
func WithInsecureSkipVerify(skip bool) Option {
	return func(cfg *exporterConfig) error {
		cfg.insecure = skip
		return nil
	}
}

// WithPoller replaces the default Redfish poller.
//
// Returns an error if p is nil.
func WithPoller(p Poller) Option {
	return func(cfg *exporterConfig) error {
		if p == nil {
			return errors.New("poller cannot be nil")
		}
		cfg.poller = p
		return nil
	}
}

// WithRegistry sets the registry the exporter's own metrics are registered
// with and served from. If not specified, a fresh registry with the Go and
// process collectors is used. The exporter's metrics are registered in
// [New], so a registry can back only one Exporter.
//
// Returns an error if reg is nil.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(cfg *exporterConfig) error {
		if reg == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Exporter instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *exporterConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// validatePath checks an HTTP route path.
func validatePath(path string) error {
	switch {
	case !strings.HasPrefix(path, "/"):
		return fmt.Errorf("%q must start with /", path)
	case path == "/":
		return errors.New(`"/" is reserved for the info page`)
	case strings.HasSuffix(path, "/"):
		return fmt.Errorf("%q must not end with /", path)
	case strings.ContainsAny(path, " \t\n{}?#"):
		return fmt.Errorf("%q contains invalid characters", path)
	}
	return nil
}
