// Package pool provides the bounded execution pool for backend polls.
//
// This package is internal to the exporter. It runs poll tasks on a fixed
// number of worker goroutines, so the number of simultaneous connections to
// fragile controllers stays capped no matter how many scrapers are asking.
//
// The main components are:
//
//   - [Pool]: fixed-size worker pool with an unbounded FIFO queue
//   - [Task]: a unit of work producing a payload or an error
//   - [Handle]: the eventual result of a submitted task
//
// Submissions never block. Deduplication is the caller's job; the cache
// package guarantees at most one queued cached-mode task per target.
package pool
