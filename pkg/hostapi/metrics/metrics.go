// Package metrics exposes the host's operational counters to
// Prometheus: collectors registered once at startup, incremented from
// hot execution paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the gauges/counters/histograms pkg/hostapi exposes
// while driving a Host. Engine updates ComputeCycles, ComputeDuration
// and ProposalTotal; MailboxDepth and EffectFailures are registered
// but nothing in this module sets or increments them. Registered against reg so a caller embedding
// this module alongside other Prometheus-instrumented components can
// supply its own registry instead of the global default.
type Metrics struct {
	ComputeCycles   *prometheus.CounterVec
	ComputeDuration *prometheus.HistogramVec
	MailboxDepth    prometheus.Gauge
	ProposalTotal   *prometheus.CounterVec
	EffectFailures  *prometheus.CounterVec
}

// New registers and returns a Metrics bundle against reg. reg == nil
// builds the collectors without registering them against any registry,
// for callers that want metric values without exposing them globally.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ComputeCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intentcore",
			Subsystem: "host",
			Name:      "compute_cycles_total",
			Help:      "Number of compute->effect->apply iterations run, labeled by terminal status.",
		}, []string{"status"}),
		ComputeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intentcore",
			Subsystem: "host",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall-clock time from Dispatch call to HostResult delivery.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		MailboxDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "intentcore",
			Subsystem: "host",
			Name:      "mailbox_depth",
			Help:      "Approximate number of jobs enqueued across all execution keys at last sample.",
		}),
		ProposalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intentcore",
			Subsystem: "proposal",
			Name:      "transitions_total",
			Help:      "Proposal FSM transitions, labeled by the resulting status.",
		}, []string{"status"}),
		EffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intentcore",
			Subsystem: "effect",
			Name:      "failures_total",
			Help:      "Effect handler invocations that resolved with ok=false or a handler error, labeled by effect type.",
		}, []string{"type"}),
	}
}
