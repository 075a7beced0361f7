// Package metrics exposes Prometheus collectors for the engine transaction
// manager. A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "engine"

// Rejection reasons.
const (
	ReasonTimeout  = "timeout"
	ReasonConflict = "conflict"
	ReasonInvalid  = "invalid"
	ReasonClosed   = "closed"
	ReasonExecutor = "executor"
)

// Outcomes of admitted mutations.
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
)

// Collector records admission and commit activity.
type Collector struct {
	admitted       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	finished       *prometheus.CounterVec
	inFlight       prometheus.Gauge
	version        prometheus.Gauge
	commitDuration prometheus.Histogram
}

// New registers the engine collectors on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		admitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_admitted_total",
			Help:      "Engine mutations that passed admission.",
		}, []string{"kind"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_rejected_total",
			Help:      "Engine mutations rejected during admission.",
		}, []string{"kind", "reason"}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_finished_total",
			Help:      "Admitted engine mutations that reached a terminal outcome.",
		}, []string{"kind", "outcome"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mutations_in_flight",
			Help:      "Engine mutations admitted but not yet finished.",
		}),
		version: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_version",
			Help:      "Last durable engine state version.",
		}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent holding the engine lock for a durable commit.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

// Admitted counts a mutation that passed admission.
func (c *Collector) Admitted(kind string) {
	if c == nil {
		return
	}
	c.admitted.WithLabelValues(kind).Inc()
	c.inFlight.Inc()
}

// Rejected counts a mutation refused during admission.
func (c *Collector) Rejected(kind, reason string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(kind, reason).Inc()
}

// Finished counts an admitted mutation reaching its outcome.
func (c *Collector) Finished(kind, outcome string) {
	if c == nil {
		return
	}
	c.finished.WithLabelValues(kind, outcome).Inc()
	c.inFlight.Dec()
}

// SetVersion records the last durable engine version.
func (c *Collector) SetVersion(version int64) {
	if c == nil {
		return
	}
	c.version.Set(float64(version))
}

// CommitTimer starts timing a commit. Call the returned func when done.
func (c *Collector) CommitTimer() func() time.Duration {
	if c == nil {
		return func() time.Duration { return 0 }
	}
	return prometheus.NewTimer(c.commitDuration).ObserveDuration
}
