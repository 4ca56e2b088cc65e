// Package metrics defines the Prometheus collectors for both decision cycles.
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fiscal_pilot"

// Collectors groups every metric the cycles emit.
type Collectors struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	ActionsPersisted    *prometheus.CounterVec
	ActionFailures      prometheus.Counter
	BlockedPaths        *prometheus.CounterVec
	SpecialistFallbacks *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed decision cycles by cycle and terminal status.",
		}, []string{"cycle", "status"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a decision cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cycle"}),
		ActionsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_persisted_total",
			Help:      "Spending actions written to the store by kind.",
		}, []string{"kind"}),
		ActionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_persist_failures_total",
			Help:      "Spending actions that failed to persist.",
		}),
		BlockedPaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_paths_total",
			Help:      "Investment paths blocked by the risk gate.",
		}, []string{"path"}),
		SpecialistFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "specialist_fallbacks_total",
			Help:      "Specialist stages replaced by their default output.",
		}, []string{"specialist"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.CyclesTotal,
			c.CycleDuration,
			c.ActionsPersisted,
			c.ActionFailures,
			c.BlockedPaths,
			c.SpecialistFallbacks,
		)
	}
	return c
}

// ObserveCycle records a finished cycle.
func (c *Collectors) ObserveCycle(cycle, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.CyclesTotal.WithLabelValues(cycle, status).Inc()
	c.CycleDuration.WithLabelValues(cycle).Observe(d.Seconds())
}

// ActionPersisted counts a stored action.
func (c *Collectors) ActionPersisted(kind string) {
	if c == nil {
		return
	}
	c.ActionsPersisted.WithLabelValues(kind).Inc()
}

// ActionFailed counts an action that could not be stored.
func (c *Collectors) ActionFailed() {
	if c == nil {
		return
	}
	c.ActionFailures.Inc()
}

// PathBlocked counts a path vetoed by the risk gate.
func (c *Collectors) PathBlocked(path string) {
	if c == nil {
		return
	}
	c.BlockedPaths.WithLabelValues(path).Inc()
}

// SpecialistFallback counts a specialist replaced by its default output.
func (c *Collectors) SpecialistFallback(specialist string) {
	if c == nil {
		return
	}
	c.SpecialistFallbacks.WithLabelValues(specialist).Inc()
}
