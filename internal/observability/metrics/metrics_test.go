package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFlowMetrics(reg)

	m.ObserveInbound("slots_shown")
	m.ObserveInbound("slots_shown")
	m.ObserveAction("slot", "ok")
	m.ObserveBooking("salon-1")
	m.ObserveConflict()
	m.ObserveSlotLookup("salon-1", 0.05)
	m.ObserveTimeToConfirmed(42)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.inboundTotal.WithLabelValues("slots_shown")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.actionsTotal.WithLabelValues("slot", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("salon-1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflictsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *FlowMetrics
	m.ObserveInbound("x")
	m.ObserveAction("slot", "ok")
	m.ObserveBooking("salon-1")
	m.ObserveConflict()
	m.ObserveSlotLookup("salon-1", 0.1)
	m.ObserveTimeToConfirmed(1)
}
