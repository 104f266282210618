package application

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.suggestionsServed(3)
	m.suggestionsServed(0)
	m.transition(lifecycle.StatusCanceled, nil)
	m.transition(lifecycle.StatusCanceled, ErrStaleState)
	m.eventPublished(EventRehearsalCreated, errors.New("redis down"))
	m.observeSlots("suggest", time.Now())

	assert.InDelta(t, 3, testutil.ToFloat64(m.suggestions), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.transitions.WithLabelValues("canceled", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.transitions.WithLabelValues("canceled", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.staleConflicts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.eventsPublished.WithLabelValues("rehearsal.created", "error")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.suggestionsServed(1)
		m.transition(lifecycle.StatusCompleted, nil)
		m.eventPublished(EventRehearsalCanceled, nil)
		m.observeSlots("validate", time.Now())
	})
}
