// Package metrics turns controller health into Prometheus exposition text
// and instruments the exporter itself.
//
// The main components are:
//
//   - [Status]: closed enumeration of component health with its gauge mapping
//   - [Encoder]: renders an [ilo.Snapshot] as text exposition format
//   - [Instrumentation]: the exporter's own counters, gauges and summaries
//
// Encoding builds a fresh registry per snapshot, so payloads never share
// state and encoding is safe for concurrent use.
package metrics
