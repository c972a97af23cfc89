// Package overlap defines the scope descriptors the conflict detector runs
// with. A scope pairs a candidate range with the filters that decide which
// existing appointments can block it.
package overlap

import (
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/timeslot"
)

// Scope narrows the set of appointments a candidate range is checked against.
// Released schedule states never block, regardless of scope.
type Scope struct {
	Range timeslot.Range

	// VehicleID restricts the check to one vehicle's appointments (the
	// vehicle-exclusive booking guard).
	VehicleID string

	// CustomerID restricts the check to one customer's appointments (the
	// same-customer-across-vehicles guard).
	CustomerID string

	// ExcludeCustomerID drops that customer's own appointments, leaving only
	// other customers' holdings. Used by the availability probe.
	ExcludeCustomerID string

	// ExcludeAppointmentID ignores one appointment, so edits do not conflict
	// with themselves.
	ExcludeAppointmentID string
}

// ForVehicle is the creation/edit guard: no other appointment for the same
// vehicle may hold an intersecting slot.
func ForVehicle(r timeslot.Range, vehicleID, excludeApptID string) Scope {
	return Scope{Range: r, VehicleID: vehicleID, ExcludeAppointmentID: excludeApptID}
}

// ForCustomer is the creation/edit guard keeping one customer from holding two
// overlapping slots even across different vehicles.
func ForCustomer(r timeslot.Range, customerID, excludeApptID string) Scope {
	return Scope{Range: r, CustomerID: customerID, ExcludeAppointmentID: excludeApptID}
}

// ExcludingCustomer is the availability-probe scope: report only conflicts held
// by other customers.
func ExcludingCustomer(r timeslot.Range, customerID, excludeApptID string) Scope {
	return Scope{Range: r, ExcludeCustomerID: customerID, ExcludeAppointmentID: excludeApptID}
}

// Blocks reports whether an existing appointment conflicts with the scope's
// candidate range. This is the reference semantics the SQL detector mirrors.
func Blocks(a model.Appointment, s Scope) bool {
	if a.ScheduleState.Released() {
		return false
	}
	if s.ExcludeAppointmentID != "" && a.ID == s.ExcludeAppointmentID {
		return false
	}
	if s.VehicleID != "" && a.VehicleID != s.VehicleID {
		return false
	}
	if s.CustomerID != "" && a.CustomerID != s.CustomerID {
		return false
	}
	if s.ExcludeCustomerID != "" && a.CustomerID == s.ExcludeCustomerID {
		return false
	}
	held := timeslot.Range{Start: a.SlotStart, End: a.SlotEnd}
	return s.Range.Overlaps(held)
}
