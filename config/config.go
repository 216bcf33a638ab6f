// Package config provides YAML configuration parsing for the exporter.
//
// This package enables running the exporter from a configuration file, as an
// alternative to command-line flags or the programmatic API. Every field is
// optional.
//
// Example configuration:
//
//	address: 0.0.0.0
//	port: 9416
//	endpoint: /metrics
//	telemetry_path: /telemetry
//	workers: 2
//	timeout: 10s
//	insecure_skip_verify: true
//
//	logging:
//	  level: info
//	  format: json
//
// String values support environment variable substitution with ${VAR} or
// ${VAR:-default}.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Parse] to fields left unset.
const (
	DefaultAddress   = "0.0.0.0"
	DefaultPort      = 9416
	DefaultEndpoint  = "/metrics"
	DefaultWorkers   = 2
	DefaultTimeout   = 10 * time.Second
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

const (
	minTimeout = 1 * time.Second
	maxTimeout = 5 * time.Minute
)

// Config is the root configuration structure for the exporter.
//
// It maps directly to the YAML configuration file structure.
// Use [Load], [Parse] or [Default] to create a Config.
type Config struct {
	// Address is the interface the HTTP server binds to. Defaults to 0.0.0.0.
	Address string `yaml:"address"`

	// Port is the HTTP server port. Defaults to 9416.
	Port int `yaml:"port"`

	// Endpoint is the path that serves scrapes. Defaults to /metrics.
	Endpoint string `yaml:"endpoint"`

	// TelemetryPath serves the exporter's own metrics. Empty disables it.
	TelemetryPath string `yaml:"telemetry_path"`

	// Workers caps concurrent backend polls across all targets. Defaults to 2.
	Workers int `yaml:"workers"`

	// Timeout bounds each backend poll. Accepts duration strings like "10s".
	// Must be between 1s and 5m. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// InsecureSkipVerify disables TLS certificate checks against iLOs.
	// Defaults to true, since iLO certificates are self-signed out of the box.
	InsecureSkipVerify *bool `yaml:"insecure_skip_verify"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures the slog handler used by the CLI.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is json or text. Defaults to json.
	Format string `yaml:"format"`
}

// SkipVerify returns the effective insecure_skip_verify value.
func (c *Config) SkipVerify() bool {
	if c.InsecureSkipVerify == nil {
		return true
	}
	return *c.InsecureSkipVerify
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns a Config with every default applied, as if parsed from an
// empty file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in string values are expanded after parsing.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates the
// result. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks field ranges. [Parse] calls it; callers that modify a
// Config afterwards, e.g. from flags, should call it again.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if err := validatePath("endpoint", c.Endpoint); err != nil {
		return err
	}
	if c.TelemetryPath != "" {
		if err := validatePath("telemetry_path", c.TelemetryPath); err != nil {
			return err
		}
		if c.TelemetryPath == c.Endpoint {
			return fmt.Errorf("telemetry_path must differ from endpoint %q", c.Endpoint)
		}
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	if c.Timeout.Duration() < minTimeout || c.Timeout.Duration() > maxTimeout {
		return fmt.Errorf("timeout must be between %s and %s, got %s",
			minTimeout, maxTimeout, c.Timeout.Duration())
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"address", &c.Address},
		{"endpoint", &c.Endpoint},
		{"telemetry_path", &c.TelemetryPath},
	} {
		expanded, err := expandEnvVars(*f.dst)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = expanded
	}

	return c.Validate()
}

// validatePath checks an HTTP route path.
func validatePath(field, path string) error {
	switch {
	case !strings.HasPrefix(path, "/"):
		return fmt.Errorf("%s must start with /, got %q", field, path)
	case path == "/":
		return fmt.Errorf("%s cannot be /, it serves the info page", field)
	case strings.HasSuffix(path, "/"):
		return fmt.Errorf("%s must not end with /, got %q", field, path)
	case strings.ContainsAny(path, " \t\n{}?#"):
		return fmt.Errorf("%s contains invalid characters: %q", field, path)
	}
	return nil
}
