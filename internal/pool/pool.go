package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/sinamoghaddas/hpilo-exporter/internal/metrics"
)

// DefaultWorkers is the reference pool size.
const DefaultWorkers = 2

var (
	// ErrClosed is returned by Submit after Close, and resolves tasks that
	// were still queued when the pool closed.
	ErrClosed = errors.New("pool closed")

	// ErrPending is returned by [Handle.Result] before the task completes.
	ErrPending = errors.New("task pending")
)

// Task is a unit of work run by a [Pool] worker.
//
// The context is owned by the pool, not by whoever submitted the task; it
// is never cancelled while the task runs.
type Task func(ctx context.Context) ([]byte, error)

// Callback is invoked once when a task finishes, before its [Handle]
// reports done. Callbacks run on the worker goroutine and must not block.
type Callback func(payload []byte, err error)

// Handle is the eventual result of a submitted [Task].
type Handle struct {
	done      chan struct{}
	payload   []byte
	err       error
	callbacks []Callback
}

func newHandle(callbacks []Callback) *Handle {
	return &Handle{
		done:      make(chan struct{}),
		callbacks: callbacks,
	}
}

// Done returns a channel that is closed when the task has finished and
// all its callbacks have run.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the task's payload and error, or [ErrPending] if it has
// not finished yet. It never blocks.
func (h *Handle) Result() ([]byte, error) {
	select {
	case <-h.done:
		return h.payload, h.err
	default:
		return nil, ErrPending
	}
}

// Wait blocks until the task finishes or ctx is done. Giving up on a wait
// does not cancel the task.
func (h *Handle) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-h.done:
		return h.payload, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type job struct {
	task   Task
	handle *Handle
}

// Pool runs tasks on a fixed number of workers.
//
// Tasks queue in FIFO order when every worker is busy; the queue is
// unbounded. All methods are safe for concurrent use.
type Pool struct {
	workers int
	logger  *slog.Logger
	inst    *metrics.Instrumentation
	ctx     context.Context

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []job
	busy    int
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates a [Pool] with the given number of workers. Values below one
// are raised to one. inst may be nil.
//
// Workers are not running until [Pool.Start] is called; tasks submitted
// earlier wait in the queue.
func New(workers int, logger *slog.Logger, inst *metrics.Instrumentation) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		workers: workers,
		logger:  logger,
		inst:    inst,
		ctx:     context.Background(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Workers returns the configured number of workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Start launches the workers. Start is idempotent, and a no-op after Close.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit queues task and returns its [Handle]. Submit never blocks.
// Callbacks run in order when the task finishes, including when it is
// discarded by Close.
//
// Returns [ErrClosed] if the pool has been closed.
func (p *Pool) Submit(task Task, callbacks ...Callback) (*Handle, error) {
	h := newHandle(callbacks)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.queue = append(p.queue, job{task: task, handle: h})
	p.report()
	p.mu.Unlock()

	p.cond.Signal()
	return h, nil
}

// Close stops accepting tasks, fails every queued task with [ErrClosed],
// and waits for running tasks to finish. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.report()
	p.mu.Unlock()

	p.cond.Broadcast()

	for _, j := range pending {
		p.resolve(j.handle, nil, ErrClosed)
	}
	if len(pending) > 0 {
		p.logger.Info("discarded queued polls on shutdown", "count", len(pending))
	}

	p.wg.Wait()
}

// Stats returns the number of queued tasks and busy workers.
func (p *Pool) Stats() (queued, busy int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue), p.busy
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		p.busy++
		p.report()
		p.mu.Unlock()

		payload, err := p.run(j.task)
		p.resolve(j.handle, payload, err)

		p.mu.Lock()
		p.busy--
		p.report()
		p.mu.Unlock()
	}
}

// run executes task with panic recovery. A panic is logged with its stack
// under a correlation id and returned as an error carrying the same id.
func (p *Pool) run(task Task) (payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("poll task panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			payload = nil
			err = fmt.Errorf("poll task panic (correlation_id: %s)", correlationID)
		}
	}()
	return task(p.ctx)
}

// resolve records the outcome, runs callbacks, then marks the handle done.
func (p *Pool) resolve(h *Handle, payload []byte, err error) {
	h.payload, h.err = payload, err
	for _, cb := range h.callbacks {
		p.invokeCallbackSafe(cb, payload, err)
	}
	close(h.done)
}

// invokeCallbackSafe calls a completion callback with panic recovery.
// Panics are logged but do not propagate.
func (p *Pool) invokeCallbackSafe(cb Callback, payload []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("completion callback panicked", "panic", r)
		}
	}()
	cb(payload, err)
}

// report publishes queue depth and busy workers. Callers hold p.mu.
func (p *Pool) report() {
	p.inst.PoolState(len(p.queue), p.busy)
}
