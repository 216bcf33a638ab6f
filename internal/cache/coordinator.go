package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sinamoghaddas/hpilo-exporter/internal/ilo"
	"github.com/sinamoghaddas/hpilo-exporter/internal/metrics"
	"github.com/sinamoghaddas/hpilo-exporter/internal/pool"
)

// ErrNotReady is returned in cached mode for a key whose first poll has
// not completed yet. Callers should retry shortly.
var ErrNotReady = errors.New("metrics not yet available")

// Mode selects how [Coordinator.Get] answers.
type Mode int

const (
	// ModeCached returns the stored payload immediately and starts a
	// background poll if none is running for the key.
	ModeCached Mode = iota

	// ModeSynchronous polls and waits for the result. Synchronous polls
	// are never deduplicated.
	ModeSynchronous
)

// String returns the mode's log name.
func (m Mode) String() string {
	if m == ModeSynchronous {
		return "synchronous"
	}
	return "cached"
}

// FetchFunc polls a target and returns its encoded payload.
type FetchFunc func(ctx context.Context, target ilo.Target) ([]byte, error)

// Submitter runs tasks with bounded concurrency. [*pool.Pool] implements it.
type Submitter interface {
	Submit(task pool.Task, callbacks ...pool.Callback) (*pool.Handle, error)
}

// entry is the per-key state. All fields are guarded by mu.
type entry struct {
	mu       sync.Mutex
	payload  []byte
	inFlight *pool.Handle
	fetched  time.Time
}

// Coordinator deduplicates polls per target key and serves the most recent
// good payload.
//
// A Coordinator is created once at startup and shared by every request
// handler. It never closes itself; shut down the [Submitter] to stop new
// polls. All methods are safe for concurrent use.
type Coordinator struct {
	fetch  FetchFunc
	pool   Submitter
	logger *slog.Logger
	inst   *metrics.Instrumentation

	mu      sync.RWMutex
	entries map[ilo.Key]*entry
}

// NewCoordinator creates a [Coordinator] that runs fetch on p. inst may be nil.
func NewCoordinator(fetch FetchFunc, p Submitter, logger *slog.Logger, inst *metrics.Instrumentation) *Coordinator {
	return &Coordinator{
		fetch:   fetch,
		pool:    p,
		logger:  logger,
		inst:    inst,
		entries: make(map[ilo.Key]*entry),
	}
}

// Get returns metrics for target.
//
// In [ModeCached] it returns the stored payload without waiting, starting a
// background poll unless one is already in flight for the key. A key with
// no stored payload yields [ErrNotReady]. Poll failures are logged, never
// returned.
//
// In [ModeSynchronous] it polls through the pool and waits, returning the
// poll's error if it fails, or ctx's error if the caller gives up first.
// The poll itself keeps running either way.
//
// The returned slice is shared and must not be modified.
func (c *Coordinator) Get(ctx context.Context, target ilo.Target, mode Mode) ([]byte, error) {
	if mode == ModeSynchronous {
		return c.getSynchronous(ctx, target)
	}
	return c.getCached(target)
}

func (c *Coordinator) getCached(target ilo.Target) ([]byte, error) {
	key := target.Key()
	e := c.lookup(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	// check and submit under one lock so concurrent callers cannot both
	// see an idle key
	if e.inFlight == nil {
		c.submitLocked(e, target)
	} else {
		c.inst.Deduplicated()
	}

	if e.payload == nil {
		c.inst.CacheRequest(false)
		return nil, ErrNotReady
	}
	c.inst.CacheRequest(true)
	return e.payload, nil
}

// submitLocked starts a cached-mode poll for e. Callers hold e.mu.
func (c *Coordinator) submitLocked(e *entry, target ilo.Target) {
	var h *pool.Handle
	h, err := c.pool.Submit(c.task(target, ModeCached), func(payload []byte, err error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if err == nil {
			e.payload = payload
			e.fetched = time.Now()
		}
		if e.inFlight == h {
			e.inFlight = nil
		}
	})
	if err != nil {
		c.logger.Warn("poll not scheduled",
			"target", target.Key().String(),
			"error", err,
		)
		return
	}
	e.inFlight = h
}

func (c *Coordinator) getSynchronous(ctx context.Context, target ilo.Target) ([]byte, error) {
	e := c.lookup(target.Key())

	h, err := c.pool.Submit(c.task(target, ModeSynchronous), func(payload []byte, err error) {
		if err != nil {
			return
		}
		e.mu.Lock()
		e.payload = payload
		e.fetched = time.Now()
		e.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("schedule poll: %w", err)
	}
	return h.Wait(ctx)
}

// task wraps the fetch with timing, instrumentation and error logging.
func (c *Coordinator) task(target ilo.Target, mode Mode) pool.Task {
	return func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		payload, err := c.fetch(ctx, target)
		elapsed := time.Since(start)

		c.inst.ObserveFetch(elapsed, err)

		attrs := []any{
			"target", target.Key().String(),
			"mode", mode.String(),
			"latency_ms", elapsed.Milliseconds(),
		}
		if err != nil {
			if kind, ok := ilo.KindOf(err); ok {
				attrs = append(attrs, "kind", kind.String())
			}
			c.logger.Error("poll failed", append(attrs, "error", err.Error())...)
			return nil, err
		}
		c.logger.Debug("poll completed", append(attrs, "bytes", len(payload))...)
		return payload, nil
	}
}

// lookup returns the entry for key, creating it on first use.
func (c *Coordinator) lookup(key ilo.Key) *entry {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[key]; ok {
		return e
	}
	e = &entry{}
	c.entries[key] = e
	return e
}

// EntryState is a read-only view of one key's cache entry.
type EntryState struct {
	// Payload is the last good payload, nil if none has landed yet.
	Payload []byte

	// Fetching reports whether a cached-mode poll is in flight.
	Fetching bool

	// FetchedAt is when Payload was stored. Zero if Payload is nil.
	FetchedAt time.Time
}

// Peek returns the state of key without triggering a poll. ok is false for
// keys that have never been requested.
func (c *Coordinator) Peek(key ilo.Key) (state EntryState, ok bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return EntryState{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return EntryState{
		Payload:   e.payload,
		Fetching:  e.inFlight != nil,
		FetchedAt: e.fetched,
	}, true
}

// Len returns the number of keys the coordinator has seen.
func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
