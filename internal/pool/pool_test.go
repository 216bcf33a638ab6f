package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinamoghaddas/hpilo-exporter/internal/metrics"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStartedPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p := New(workers, testLogger(), nil)
	p.Start()
	t.Cleanup(p.Close)
	return p
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for task")
	}
}

func TestPool_RunsTask(t *testing.T) {
	p := newStartedPool(t, 2)

	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		return []byte("payload"), nil
	})
	require.NoError(t, err)

	got, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestPool_PropagatesError(t *testing.T) {
	p := newStartedPool(t, 1)
	boom := errors.New("boom")

	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 2
	p := newStartedPool(t, workers)

	var running, maxRunning atomic.Int32
	release := make(chan struct{})

	handles := make([]*Handle, 0, 10)
	for i := 0; i < 10; i++ {
		h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil, nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	// let workers pick up what they can
	require.Eventually(t, func() bool {
		queued, busy := p.Stats()
		return busy == workers && queued == 8
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	for _, h := range handles {
		waitDone(t, h)
	}

	assert.EqualValues(t, workers, maxRunning.Load())
}

func TestPool_FIFO(t *testing.T) {
	p := New(1, testLogger(), nil)
	t.Cleanup(p.Close)

	var (
		mu    sync.Mutex
		order []int
	)
	var handles []*Handle
	for i := 0; i < 5; i++ {
		i := i
		h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	// submitted before Start, so everything was queued
	p.Start()
	for _, h := range handles {
		waitDone(t, h)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_ResultBeforeDone(t *testing.T) {
	p := newStartedPool(t, 1)
	release := make(chan struct{})

	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		<-release
		return []byte("x"), nil
	})
	require.NoError(t, err)

	_, err = h.Result()
	assert.ErrorIs(t, err, ErrPending)

	close(release)
	waitDone(t, h)

	got, err := h.Result()
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestPool_CallbacksRunBeforeDone(t *testing.T) {
	p := newStartedPool(t, 1)

	var seen atomic.Value
	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		return []byte("v"), nil
	}, func(payload []byte, err error) {
		seen.Store(string(payload))
	})
	require.NoError(t, err)

	waitDone(t, h)
	assert.Equal(t, "v", seen.Load())
}

func TestPool_CallbackPanicRecovered(t *testing.T) {
	p := newStartedPool(t, 1)

	var second atomic.Bool
	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		return nil, nil
	}, func([]byte, error) {
		panic("callback blew up")
	}, func([]byte, error) {
		second.Store(true)
	})
	require.NoError(t, err)

	waitDone(t, h)
	assert.True(t, second.Load(), "later callbacks should still run")
}

func TestPool_TaskPanicRecovered(t *testing.T) {
	p := newStartedPool(t, 1)

	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		panic("task blew up")
	})
	require.NoError(t, err)

	_, err = h.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "correlation_id")

	// the worker survives the panic
	h, err = p.Submit(func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	got, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
}

func TestPool_WaitGivesUpWithoutCancelling(t *testing.T) {
	p := newStartedPool(t, 1)
	release := make(chan struct{})

	var ctxErr atomic.Value
	h, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		<-release
		if ctx.Err() != nil {
			ctxErr.Store(ctx.Err())
		}
		return []byte("late"), nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	waitDone(t, h)
	got, err := h.Result()
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), got)
	assert.Nil(t, ctxErr.Load(), "task context must not be cancelled by the waiter")
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(1, testLogger(), nil)
	p.Start()
	p.Close()

	_, err := p.Submit(func(ctx context.Context) ([]byte, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_CloseDiscardsQueuedAndWaitsForRunning(t *testing.T) {
	p := New(1, testLogger(), nil)
	p.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	running, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		close(started)
		<-release
		return []byte("finished"), nil
	})
	require.NoError(t, err)
	<-started

	var callbackErr atomic.Value
	queued, err := p.Submit(func(ctx context.Context) ([]byte, error) {
		t.Error("queued task should never run")
		return nil, nil
	}, func(_ []byte, err error) {
		callbackErr.Store(err)
	})
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	waitDone(t, queued)
	_, err = queued.Result()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, ErrClosed, callbackErr.Load())

	select {
	case <-closed:
		t.Fatal("Close returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after running task finished")
	}

	got, err := running.Result()
	require.NoError(t, err)
	assert.Equal(t, []byte("finished"), got)
}

func TestPool_CloseIdempotent(t *testing.T) {
	p := New(2, testLogger(), nil)
	p.Start()

	p.Close()
	p.Close()
}

func TestPool_CloseBeforeStart(t *testing.T) {
	p := New(2, testLogger(), nil)
	h, err := p.Submit(func(ctx context.Context) ([]byte, error) { return nil, nil })
	require.NoError(t, err)

	p.Close()
	p.Start() // no-op after close

	_, err = h.Result()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_MinimumOneWorker(t *testing.T) {
	p := New(0, testLogger(), nil)
	assert.Equal(t, 1, p.Workers())
}

func TestPool_ReportsInstrumentation(t *testing.T) {
	reg := prometheus.NewRegistry()
	inst := metrics.NewInstrumentation(reg)
	p := New(1, testLogger(), inst)
	t.Cleanup(p.Close)

	for i := 0; i < 3; i++ {
		_, err := p.Submit(func(ctx context.Context) ([]byte, error) { return nil, nil })
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	var depth float64 = -1
	for _, mf := range families {
		if mf.GetName() == "hpilo_exporter_pool_queue_depth" {
			depth = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 3.0, depth)
}
