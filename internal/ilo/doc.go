// Package ilo polls HPE iLO management controllers for health telemetry.
//
// This package is internal to the exporter and handles everything that
// talks to the device itself:
//
//   - [Target] and [Key]: what to poll, and how polls are grouped for caching
//   - [Snapshot]: the structured result of a single poll
//   - [Poller]: the interface the rest of the exporter consumes
//   - [RedfishPoller]: a Poller backed by the controller's Redfish API
//   - [Error]: poll failures classified as auth, network or communication errors
//
// A poll is blocking and slow (seconds on older controllers). Callers are
// expected to bound how many run at once; see the pool package.
package ilo
