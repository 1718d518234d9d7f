package metrics

import "github.com/prometheus/client_golang/prometheus"

// FlowMetrics exposes counters/histograms for the booking flow.
type FlowMetrics struct {
	inboundTotal    *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	conflictsTotal  prometheus.Counter
	slotLookup      *prometheus.HistogramVec
	timeToConfirmed prometheus.Histogram
}

func NewFlowMetrics(reg prometheus.Registerer) *FlowMetrics {
	m := &FlowMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapbook",
			Subsystem: "flow",
			Name:      "inbound_message_total",
			Help:      "Total inbound customer messages",
		}, []string{"outcome"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapbook",
			Subsystem: "flow",
			Name:      "button_action_total",
			Help:      "Total decoded button taps",
		}, []string{"action_type", "outcome"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapbook",
			Subsystem: "booking",
			Name:      "committed_total",
			Help:      "Total committed bookings",
		}, []string{"salon_id"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tapbook",
			Subsystem: "booking",
			Name:      "slot_conflict_total",
			Help:      "Confirm attempts lost to a racing booking",
		}),
		slotLookup: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tapbook",
			Subsystem: "availability",
			Name:      "slot_lookup_seconds",
			Help:      "Latency of slot searches across the horizon",
			Buckets:   prometheus.DefBuckets,
		}, []string{"salon_id"}),
		timeToConfirmed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tapbook",
			Subsystem: "flow",
			Name:      "time_to_confirmed_seconds",
			Help:      "Seconds from first message to committed booking",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 900},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.actionsTotal, m.bookingsTotal,
		m.conflictsTotal, m.slotLookup, m.timeToConfirmed)
	return m
}

func (m *FlowMetrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
}

func (m *FlowMetrics) ObserveAction(actionType, outcome string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(actionType, outcome).Inc()
}

func (m *FlowMetrics) ObserveBooking(salonID string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(salonID).Inc()
}

func (m *FlowMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *FlowMetrics) ObserveSlotLookup(salonID string, seconds float64) {
	if m == nil {
		return
	}
	m.slotLookup.WithLabelValues(salonID).Observe(seconds)
}

func (m *FlowMetrics) ObserveTimeToConfirmed(seconds float64) {
	if m == nil {
		return
	}
	m.timeToConfirmed.Observe(seconds)
}
