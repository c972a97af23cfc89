package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveBooking("created")
	m.ObserveSlotConflict("create")
	m.ObserveTransition("schedule", "CUSTOMER_CONFIRMED")
	m.ObserveRedemption("confirmed")
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("created")
	m.ObserveSlotConflict("update")
	m.ObserveTransition("dispatch", "ASSIGNED")
	m.ObserveRedemption("expired")
}
