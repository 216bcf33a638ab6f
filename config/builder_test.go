package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	hpiloexporter "github.com/sinamoghaddas/hpilo-exporter"
)

func TestBuildOptions_Defaults(t *testing.T) {
	exp, err := hpiloexporter.New(BuildOptions(Default(), nil)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if exp.Address() != "0.0.0.0" {
		t.Errorf("Address() = %q, want 0.0.0.0", exp.Address())
	}
	if exp.Port() != 9416 {
		t.Errorf("Port() = %d, want 9416", exp.Port())
	}
	if exp.Endpoint() != "/metrics" {
		t.Errorf("Endpoint() = %q, want /metrics", exp.Endpoint())
	}
	if exp.Workers() != 2 {
		t.Errorf("Workers() = %d, want 2", exp.Workers())
	}
	if exp.Timeout() != 10*time.Second {
		t.Errorf("Timeout() = %v, want 10s", exp.Timeout())
	}
}

func TestBuildOptions_AllFields(t *testing.T) {
	cfg, err := Parse([]byte(`
address: 127.0.0.1
port: 9100
endpoint: /ilo
telemetry_path: /telemetry
workers: 5
timeout: 45s
insecure_skip_verify: false
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	exp, err := hpiloexporter.New(BuildOptions(cfg, logger)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if exp.Address() != "127.0.0.1" {
		t.Errorf("Address() = %q, want 127.0.0.1", exp.Address())
	}
	if exp.Port() != 9100 {
		t.Errorf("Port() = %d, want 9100", exp.Port())
	}
	if exp.Endpoint() != "/ilo" {
		t.Errorf("Endpoint() = %q, want /ilo", exp.Endpoint())
	}
	if exp.Workers() != 5 {
		t.Errorf("Workers() = %d, want 5", exp.Workers())
	}
	if exp.Timeout() != 45*time.Second {
		t.Errorf("Timeout() = %v, want 45s", exp.Timeout())
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LoggingConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("visible", "target", "ilo1:443:admin")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line at info level, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "visible" || entry["target"] != "ilo1:443:admin" {
		t.Errorf("unexpected log entry: %v", entry)
	}
}

func TestNewLogger_TextDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LoggingConfig{Level: "debug", Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Debug("poll completed", "bytes", 42)

	if !strings.Contains(buf.String(), "msg=\"poll completed\"") || !strings.Contains(buf.String(), "bytes=42") {
		t.Errorf("unexpected text output: %s", buf.String())
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, LoggingConfig{Level: "loud"}); err == nil {
		t.Error("NewLogger() expected error for unknown level, got nil")
	}
	if _, err := NewLogger(&bytes.Buffer{}, LoggingConfig{Format: "xml"}); err == nil {
		t.Error("NewLogger() expected error for unknown format, got nil")
	}
}
