// Standalone mock iLO controller for trying out the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockilo
//
// Then in another terminal:
//
//	go run ./cmd/hpilo-exporter serve
//	curl 'http://localhost:9416/metrics?ilo_host=127.0.0.1&ilo_port=8443&ilo_user=admin&ilo_password=admin'
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo/ilotest"
)

const listenAddr = "127.0.0.1:8443"

func main() {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", listenAddr, "error", err)
		os.Exit(1)
	}

	dev := ilotest.NewDevice("admin", "admin")
	dev.SetDelay(500 * time.Millisecond)

	srv := httptest.NewUnstartedServer(dev)
	srv.Listener = ln
	srv.StartTLS()
	defer srv.Close()

	fmt.Printf("Mock iLO listening on https://%s (user admin, password admin)\n", listenAddr)
	fmt.Println("Fan health cycles through: OK → Warning → Critical")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cycleFans(ctx, dev)
}

// cycleFans moves the first fan through each health value at random
// intervals until ctx is cancelled.
func cycleFans(ctx context.Context, dev *ilotest.Device) {
	healths := []string{"OK", "Warning", "Critical"}
	idx := 0

	for {
		wait := time.Duration(20+rand.Intn(41)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		old := healths[idx]
		idx = (idx + 1) % len(healths)

		st := ilotest.DefaultState()
		st.Fans["Fan 1"] = healths[idx]
		dev.SetState(st)
		slog.Info("status change", "component", "Fan 1", "from", old, "to", healths[idx])
	}
}
