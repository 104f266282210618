package application

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

const metricsNamespace = "rehearsal_scheduler"

// Metrics holds the service level Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	suggestions     prometheus.Counter
	transitions     *prometheus.CounterVec
	staleConflicts  prometheus.Counter
	eventsPublished *prometheus.CounterVec
	slotLatency     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered, which suits tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		suggestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "slot_suggestions_total",
			Help:      "Number of slot suggestions returned to callers.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rehearsal_transitions_total",
			Help:      "Rehearsal status transitions by target status and outcome.",
		}, []string{"status", "outcome"}),
		staleConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_state_conflicts_total",
			Help:      "Conditional status updates lost to a concurrent writer.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_published_total",
			Help:      "Notifier publish attempts by event type and outcome.",
		}, []string{"type", "outcome"}),
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "slot_computation_seconds",
			Help:      "Time spent computing slot suggestions and validations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.suggestions, m.transitions, m.staleConflicts, m.eventsPublished, m.slotLatency)
	}
	return m
}

func (m *Metrics) suggestionsServed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.suggestions.Add(float64(n))
}

func (m *Metrics) transition(status lifecycle.Status, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status), outcome(err)).Inc()
	if errors.Is(err, ErrStaleState) {
		m.staleConflicts.Inc()
	}
}

func (m *Metrics) eventPublished(eventType EventType, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(string(eventType), outcome(err)).Inc()
}

func (m *Metrics) observeSlots(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.slotLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
