// Package server provides the HTTP request dispatcher for the exporter.
//
// This package is internal to the exporter and handles all HTTP concerns:
//
//   - Scrapes: the metrics endpoint reads the target from ilo_host, ilo_port,
//     ilo_user, ilo_password and ilo_cached, with ILO_* environment fallbacks
//   - Info page: an HTML page at "/" linking to the metrics endpoint
//   - Telemetry: the exporter's own metrics at an optional separate path
//
// A request whose target parameters are missing or invalid is answered
// with 500 and never reaches the coordinator. So is a cached-mode request
// for a target with no metrics yet.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
