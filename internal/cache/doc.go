// Package cache provides the fetch-cache coordinator that sits between
// inbound scrapes and backend polls.
//
// This package is internal to the exporter. It keeps, per target key, the
// last successfully encoded payload and the handle of at most one in-flight
// cached-mode poll.
//
// The main components are:
//
//   - [Coordinator]: owns the per-key registry and decides when to poll
//   - [Mode]: cached (never blocks) or synchronous (waits for a fresh poll)
//   - [FetchFunc]: the poll-and-encode step the coordinator schedules
//
// In cached mode, concurrent requests for one key share a single backend
// poll and are served the previous payload while it runs. A failed poll
// never replaces a stored payload. Entries are never evicted and live as
// long as the Coordinator.
package cache
