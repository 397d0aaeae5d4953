// Package metrics holds the Prometheus collectors of the ledger core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billbuddy"

// Metrics groups every collector. Components take a *Metrics instead of
// registering globals, so tests can use a private registry.
type Metrics struct {
	QueueDepth        prometheus.Gauge
	QueueEnqueued     prometheus.Counter
	QueueEvicted      prometheus.Counter
	QueueApplied      prometheus.Counter
	QueueFailed       prometheus.Counter
	QueueAbandoned    prometheus.Counter
	RetryAttempts     prometheus.Counter
	MigrationsApplied prometheus.Counter
	BinEvicted        prometheus.Counter
	RemoteCalls       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "queue", Name: "depth",
			Help: "Operations currently waiting in the offline queue.",
		}),
		QueueEnqueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "enqueued_total",
			Help: "Operations added to the offline queue.",
		}),
		QueueEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "evicted_total",
			Help: "Oldest operations dropped because the queue was full.",
		}),
		QueueApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "applied_total",
			Help: "Operations delivered to the remote store.",
		}),
		QueueFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "failed_total",
			Help: "Failed delivery attempts during drains.",
		}),
		QueueAbandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "queue", Name: "abandoned_total",
			Help: "Operations removed after exhausting retries or failing permanently.",
		}),
		RetryAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "retry", Name: "attempts_total",
			Help: "Attempts made by the backoff wrapper, including the first.",
		}),
		MigrationsApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "schema", Name: "migrations_applied_total",
			Help: "Record-shape migrations applied at boot.",
		}),
		BinEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "recycle_bin", Name: "evicted_total",
			Help: "Recycled records removed by the retention sweep.",
		}),
		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "remote", Name: "calls_total",
			Help: "Remote store calls by operation and result.",
		}, []string{"operation", "result"}),
	}
}

// NewNop returns collectors attached to a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
