package main

import (
	"testing"
	"time"

	hpiloexporter "github.com/sinamoghaddas/hpilo-exporter"
)

func TestShutdownTimeout_CoversDrain(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{"default poll timeout", 10 * time.Second, 20 * time.Second},
		{"long poll timeout", 2 * time.Minute, 2*time.Minute + 10*time.Second},
		{"short poll timeout", time.Second, 11 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := hpiloexporter.New(hpiloexporter.WithTimeout(tt.timeout))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			got := shutdownTimeout(exp)
			if got != tt.want {
				t.Errorf("shutdownTimeout() = %v, want %v", got, tt.want)
			}
			if got <= exp.DrainTimeout() {
				t.Errorf("shutdownTimeout() = %v must exceed drain time %v", got, exp.DrainTimeout())
			}
		})
	}
}
