package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes, used as the outcome label on the call counter.
const (
	OutcomeResult = "result"
	OutcomeFault  = "fault"
	OutcomeError  = "error"
)

// Metrics aggregates the bridge's operational counters. All methods are safe
// on a nil receiver so instrumentation stays optional at every call site.
type Metrics struct {
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	pending   prometheus.Gauge
	collected prometheus.Counter
}

// New builds the collector set and registers it with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "objlink",
			Name:      "calls_total",
			Help:      "Commands sent to the worker, by command and outcome.",
		}, []string{"command", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "objlink",
			Name:      "call_duration_seconds",
			Help:      "Round-trip time of one command/reply exchange.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"command"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "objlink",
			Name:      "pending_collections",
			Help:      "Handles waiting for the worker to confirm their release.",
		}),
		collected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "objlink",
			Name:      "collected_handles_total",
			Help:      "Handles the worker confirmed as released.",
		}),
	}

	for _, c := range []prometheus.Collector{m.calls, m.latency, m.pending, m.collected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCall records one finished command exchange.
func (m *Metrics) ObserveCall(command, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(command, outcome).Inc()
	m.latency.WithLabelValues(command).Observe(d.Seconds())
}

// SetPending records the current size of the pending-collection set.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// AddCollected records handles the worker confirmed in one reply.
func (m *Metrics) AddCollected(n int) {
	if m == nil || n == 0 {
		return
	}
	m.collected.Add(float64(n))
}
