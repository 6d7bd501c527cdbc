package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderCreated()
	m.OrderCreated()
	m.Transition("draft", "pending")
	m.NumberConflict()
	m.Received(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("draft", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NumberConflicts))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ItemsReceived))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.Transition("a", "b")
		m.NumberConflict()
		m.Received(1)
	})
}
