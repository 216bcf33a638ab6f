// Example of embedding the exporter as a library.
//
// It starts a mock iLO controller in-process and an exporter in front of
// it, then prints a ready-made scrape URL.
//
//	go run ./example
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	hpiloexporter "github.com/sinamoghaddas/hpilo-exporter"
	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo/ilotest"
)

func main() {
	mock := ilotest.NewServer("monitor", "secret")
	defer mock.Close()
	mock.SetDelay(300 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	exp, err := hpiloexporter.New(
		hpiloexporter.WithAddress("127.0.0.1"),
		hpiloexporter.WithPort(9416),
		hpiloexporter.WithWorkers(2),
		hpiloexporter.WithTimeout(5*time.Second),
		hpiloexporter.WithTelemetryPath("/telemetry"),
		hpiloexporter.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create exporter", "error", err)
		os.Exit(1)
	}

	target := mock.Target("secret")
	q := url.Values{}
	q.Set("ilo_host", target.Host)
	q.Set("ilo_port", fmt.Sprint(target.Port))
	q.Set("ilo_user", target.User)
	q.Set("ilo_password", target.Password)
	base := "http://" + net.JoinHostPort(exp.Address(), fmt.Sprint(exp.Port()))

	fmt.Println()
	fmt.Println("  HP iLO exporter demo")
	fmt.Println()
	fmt.Println("  Synchronous scrape:")
	fmt.Printf("    curl '%s%s?%s'\n", base, exp.Endpoint(), q.Encode())
	q.Set("ilo_cached", "true")
	fmt.Println("  Cached scrape (500 until the first poll lands):")
	fmt.Printf("    curl '%s%s?%s'\n", base, exp.Endpoint(), q.Encode())
	fmt.Println("  Exporter telemetry:")
	fmt.Printf("    curl '%s/telemetry'\n", base)
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := exp.Start(ctx); err != nil {
		slog.Error("exporter error", "error", err)
		os.Exit(1)
	}
}
