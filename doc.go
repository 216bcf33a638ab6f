// Package hpiloexporter exposes the health of HPE iLO management controllers
// as Prometheus metrics.
//
// The exporter is multi-target: each scrape names the controller to poll in
// its query string, and Prometheus relabelling typically fills those in:
//
//	GET /metrics?ilo_host=10.0.0.5&ilo_port=443&ilo_user=monitor&ilo_password=secret
//
// Any parameter left out falls back to the matching ILO_HOST, ILO_PORT,
// ILO_USER, ILO_PASSWORD or ILO_CACHED environment variable.
//
// # Quick Start
//
//	exp, _ := hpiloexporter.New(hpiloexporter.WithPort(9416))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	exp.Start(ctx) // blocks until context is cancelled
//
// # Cached and synchronous scrapes
//
// iLO controllers answer slowly and handle concurrent sessions poorly. By
// default each scrape polls its controller and waits. With ilo_cached=true
// the scrape is answered immediately from the last successful poll while a
// background refresh runs; concurrent cached scrapes of one controller share
// a single refresh. The first cached scrape of a controller fails with 500
// until its first poll lands.
//
// Across all controllers, at most [WithWorkers] polls run at once.
//
// # Metrics
//
// For every health category the controller reports (fans, temperature,
// power_supplies, processor, memory, bios_hardware, ...):
//
//	hpilo_<category>_gauge{product_name,server_name}  0 OK, 1 degraded, 2 failed
//
// plus hpilo_firmware_version and hpilo_scrape_duration_seconds.
//
// # Architecture
//
// The exporter consists of several internal packages (under internal/):
//
//   - internal/ilo: Redfish poller and the shared Target and Snapshot types
//   - internal/metrics: exposition encoder and the exporter's own metrics
//   - internal/pool: bounded worker pool for backend polls
//   - internal/cache: per-target fetch cache with single-flight refreshes
//   - internal/server: HTTP request dispatcher
//   - web: embedded info page
//
// The internal packages are not part of the public API and may change
// without notice.
package hpiloexporter
