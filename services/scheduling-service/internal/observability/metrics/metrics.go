package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the scheduling workflow.
type BookingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	slotConflicts    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	tokenRedemptions *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Appointment creations by outcome",
		}, []string{"outcome"}),
		slotConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Bookings and edits rejected by the overlap guard",
		}, []string{"op"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "booking",
			Name:      "state_transitions_total",
			Help:      "Schedule-state and dispatch-status transitions applied",
		}, []string{"axis", "to"}),
		tokenRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "booking",
			Name:      "token_redemptions_total",
			Help:      "Public confirmation-link redemptions by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotConflicts, m.transitionsTotal, m.tokenRedemptions)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotConflict(op string) {
	if m == nil {
		return
	}
	m.slotConflicts.WithLabelValues(op).Inc()
}

func (m *BookingMetrics) ObserveTransition(axis, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(axis, to).Inc()
}

func (m *BookingMetrics) ObserveRedemption(result string) {
	if m == nil {
		return
	}
	m.tokenRedemptions.WithLabelValues(result).Inc()
}
