package hpiloexporter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sinamoghaddas/hpilo-exporter/internal/cache"
	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo"
	"github.com/sinamoghaddas/hpilo-exporter/internal/metrics"
	"github.com/sinamoghaddas/hpilo-exporter/internal/pool"
	"github.com/sinamoghaddas/hpilo-exporter/internal/server"
	"github.com/sinamoghaddas/hpilo-exporter/web"
)

const (
	defaultAddress  = "0.0.0.0"
	defaultPort     = 9416
	defaultEndpoint = "/metrics"
	defaultWorkers  = pool.DefaultWorkers
	defaultTimeout  = ilo.DefaultTimeout

	minTimeout = time.Second
	maxTimeout = 5 * time.Minute
)

// Target identifies one iLO controller and the credentials to poll it.
type Target = ilo.Target

// Snapshot is the health of a controller at the time it was polled.
type Snapshot = ilo.Snapshot

// Poller fetches a [Snapshot] from a controller. See [WithPoller].
type Poller = ilo.Poller

// PollerFunc adapts a function to the [Poller] interface.
type PollerFunc = ilo.PollerFunc

// Exporter serves iLO health as Prometheus metrics.
//
// Exporter wires a bounded worker pool, a per-target fetch cache and an
// HTTP dispatcher together. It is created using [New] with functional
// options and started with [Exporter.Start].
//
// The typical lifecycle is:
//
//	exp, err := hpiloexporter.New(hpiloexporter.WithPort(9416))
//	if err != nil {
//	    slog.Error("failed to create exporter", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	exp.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Exporter struct {
	address       string
	port          int
	endpoint      string
	telemetryPath string
	workers       int
	timeout       time.Duration
	poller        Poller
	registry      *prometheus.Registry
	inst          *metrics.Instrumentation
	logger        *slog.Logger

	mu   sync.Mutex
	addr string
}

// New creates a new [Exporter] with the given options.
//
// Options have sensible defaults:
//   - Address: 0.0.0.0
//   - Port: 9416
//   - Endpoint: /metrics
//   - Workers: 2
//   - Poll timeout: 10 seconds
//   - Poller: Redfish over HTTPS, certificate verification disabled
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Exporter, error) {
	cfg := &exporterConfig{
		address:  defaultAddress,
		port:     defaultPort,
		endpoint: defaultEndpoint,
		workers:  defaultWorkers,
		timeout:  defaultTimeout,
		insecure: true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.telemetryPath != "" && cfg.telemetryPath == cfg.endpoint {
		return nil, fmt.Errorf("telemetry path %q must differ from the metrics endpoint", cfg.telemetryPath)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	poller := cfg.poller
	if poller == nil {
		poller = ilo.NewRedfishPoller(cfg.timeout, cfg.insecure, logger)
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Exporter{
		address:       cfg.address,
		port:          cfg.port,
		endpoint:      cfg.endpoint,
		telemetryPath: cfg.telemetryPath,
		workers:       cfg.workers,
		timeout:       cfg.timeout,
		poller:        poller,
		registry:      registry,
		inst:          metrics.NewInstrumentation(registry),
		logger:        logger,
	}, nil
}

// Start serves scrapes until ctx is cancelled.
//
// Start is a blocking call. During execution:
//
//   - The worker pool starts with the configured number of workers
//   - The HTTP server binds the configured address and port
//   - Each scrape polls its target through the pool, or answers from the
//     fetch cache when ilo_cached is set
//
// On cancellation the HTTP server is shut down first, then the pool is
// closed: queued polls are discarded and running polls finish.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (e *Exporter) Start(ctx context.Context) error {
	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	workers := pool.New(e.workers, e.logger, e.inst)
	workers.Start()

	coordinator := cache.NewCoordinator(e.fetch, workers, e.logger, e.inst)

	srvCfg := server.Config{
		Address:       e.address,
		Port:          e.port,
		Endpoint:      e.endpoint,
		TelemetryPath: e.telemetryPath,
		Assets:        web.Assets,
	}
	if e.telemetryPath != "" {
		srvCfg.Telemetry = promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(e.logger.Handler(), slog.LevelError),
		})
	}

	httpServer := server.NewServer(coordinator, srvCfg, e.logger)
	if err := httpServer.Start(ctx); err != nil {
		workers.Close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	e.mu.Lock()
	e.addr = httpServer.Addr()
	e.mu.Unlock()

	e.logger.Info("starting exporter",
		"url", "http://"+net.JoinHostPort(e.address, strconv.Itoa(e.port))+e.endpoint,
		"workers", workers.Workers(),
		"timeout", e.timeout.String(),
	)
	if e.telemetryPath != "" {
		e.logger.Info("telemetry available", "path", e.telemetryPath)
	}

	<-ctx.Done()
	e.logger.Info("shutting down exporter")
	<-httpServer.Done()
	workers.Close()

	e.mu.Lock()
	e.addr = ""
	e.mu.Unlock()
	e.logger.Info("exporter stopped")
	return nil
}

// fetch polls target and encodes the result.
func (e *Exporter) fetch(ctx context.Context, target Target) ([]byte, error) {
	start := time.Now()
	snap, err := e.poller.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	payload, err := metrics.Encoder{}.Encode(snap, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("encode metrics for %s: %w", target.Key(), err)
	}
	return payload, nil
}

// Addr returns the address the HTTP server is bound to, or "" if the
// exporter is not running.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// Address returns the configured listen address.
func (e *Exporter) Address() string {
	return e.address
}

// Port returns the configured HTTP port.
func (e *Exporter) Port() int {
	return e.port
}

// Endpoint returns the configured metrics path.
func (e *Exporter) Endpoint() string {
	return e.endpoint
}

// Workers returns the configured number of concurrent backend polls.
func (e *Exporter) Workers() int {
	return e.workers
}

// Timeout returns the configured poll timeout.
func (e *Exporter) Timeout() time.Duration {
	return e.timeout
}

// DrainTimeout returns the longest a graceful shutdown can take once the
// context passed to [Exporter.Start] is cancelled: the HTTP grace period
// for in-flight scrapes, then one poll timeout for running polls.
func (e *Exporter) DrainTimeout() time.Duration {
	return server.ShutdownTimeout + e.timeout
}
