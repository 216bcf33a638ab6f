package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "exporter"

// Instrumentation holds the exporter's own metrics.
//
// All methods are safe to call on a nil *Instrumentation, in which case
// they do nothing. This lets the cache and pool run uninstrumented in tests.
type Instrumentation struct {
	requestDuration prometheus.Summary
	fetches         *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
	deduplicated    prometheus.Counter
	queueDepth      prometheus.Gauge
	busyWorkers     prometheus.Gauge
}

// NewInstrumentation creates the exporter metrics and registers them with
// reg. A nil reg leaves them unregistered.
func NewInstrumentation(reg prometheus.Registerer) *Instrumentation {
	in := &Instrumentation{
		requestDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  namespace,
			Subsystem:  subsystem,
			Name:       "request_processing_seconds",
			Help:       "Time spent polling an iLO and encoding its metrics.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_total",
			Help:      "Backend polls by result.",
		}, []string{"result"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_requests_total",
			Help:      "Cached-mode requests by outcome: hit served a stored payload, cold had none yet.",
		}, []string{"outcome"}),
		deduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fetches_deduplicated_total",
			Help:      "Cached-mode requests that joined an in-flight poll instead of starting one.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_queue_depth",
			Help:      "Polls waiting for a free worker.",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_busy_workers",
			Help:      "Workers currently running a poll.",
		}),
	}

	// pre-create label values so they export as zero before the first event
	in.fetches.WithLabelValues("success")
	in.fetches.WithLabelValues("failure")
	in.cacheRequests.WithLabelValues("hit")
	in.cacheRequests.WithLabelValues("cold")

	if reg != nil {
		reg.MustRegister(
			in.requestDuration,
			in.fetches,
			in.cacheRequests,
			in.deduplicated,
			in.queueDepth,
			in.busyWorkers,
		)
	}
	return in
}

// ObserveFetch records one backend poll.
func (in *Instrumentation) ObserveFetch(d time.Duration, err error) {
	if in == nil {
		return
	}
	in.requestDuration.Observe(d.Seconds())
	if err != nil {
		in.fetches.WithLabelValues("failure").Inc()
		return
	}
	in.fetches.WithLabelValues("success").Inc()
}

// CacheRequest records a cached-mode lookup.
func (in *Instrumentation) CacheRequest(hit bool) {
	if in == nil {
		return
	}
	if hit {
		in.cacheRequests.WithLabelValues("hit").Inc()
		return
	}
	in.cacheRequests.WithLabelValues("cold").Inc()
}

// Deduplicated records a request that joined an in-flight poll.
func (in *Instrumentation) Deduplicated() {
	if in == nil {
		return
	}
	in.deduplicated.Inc()
}

// PoolState records the pool's queue depth and busy worker count.
func (in *Instrumentation) PoolState(queued, busy int) {
	if in == nil {
		return
	}
	in.queueDepth.Set(float64(queued))
	in.busyWorkers.Set(float64(busy))
}
