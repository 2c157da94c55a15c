// Package metrics instruments the bot: Prometheus counters for bridge
// attempts, fallback hand-offs and finished generations, plus an in-memory
// Store of recent generations served as JSON on /status.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Namespace prefixes every metric name.
const Namespace = "lmarena"

// Collector owns a private Prometheus registry. It implements
// bridge.Observer and the handlers' generation recorder.
type Collector struct {
	registry *prometheus.Registry
	store    *Store

	attempts      *prometheus.CounterVec
	attemptTime   *prometheus.HistogramVec
	fallbacks     prometheus.Counter
	generations   *prometheus.CounterVec
	generationDur *prometheus.HistogramVec
	inFlight      prometheus.Gauge
}

// NewCollector registers the bot's metrics plus the Go runtime and process
// collectors on a fresh registry. store may be nil.
func NewCollector(store *Store) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		store:    store,

		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bridge_attempts_total",
			Help:      "HTTP attempts against the bridge or fallback API, by leg and result.",
		}, []string{"leg", "result"}),

		attemptTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "bridge_attempt_duration_seconds",
			Help:      "Duration of one HTTP attempt.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		}, []string{"leg"}),

		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fallback_handoffs_total",
			Help:      "Requests handed from the bridge to the fallback API.",
		}),

		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "generations_total",
			Help:      "Finished chat command invocations, by command and status.",
		}, []string{"command", "status"}),

		generationDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end duration of a chat command invocation.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"command"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "invocations_in_flight",
			Help:      "Chat command invocations currently running.",
		}),
	}

	c.registry.MustRegister(
		c.attempts,
		c.attemptTime,
		c.fallbacks,
		c.generations,
		c.generationDur,
		c.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the registry for the HTTP handler and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Store returns the attached status store, or nil.
func (c *Collector) Store() *Store {
	return c.store
}

// ObserveAttempt implements bridge.Observer.
func (c *Collector) ObserveAttempt(leg, outcome string, elapsed time.Duration) {
	c.attempts.WithLabelValues(leg, outcome).Inc()
	c.attemptTime.WithLabelValues(leg).Observe(elapsed.Seconds())
}

// ObserveFallback implements bridge.Observer.
func (c *Collector) ObserveFallback() {
	c.fallbacks.Inc()
	if c.store != nil {
		c.store.RecordFallback()
	}
}

// ObserveGeneration records a finished invocation.
func (c *Collector) ObserveGeneration(command, status, leg string, elapsed time.Duration) {
	c.generations.WithLabelValues(command, status).Inc()
	c.generationDur.WithLabelValues(command).Observe(elapsed.Seconds())
	if c.store != nil {
		c.store.Record(Generation{Command: command, Status: status, Leg: leg, Duration: elapsed})
	}
}

// InvocationStarted increments the in-flight gauge.
func (c *Collector) InvocationStarted() { c.inFlight.Inc() }

// InvocationFinished decrements the in-flight gauge.
func (c *Collector) InvocationFinished() { c.inFlight.Dec() }
