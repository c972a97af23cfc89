package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/overlap"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/timeslot"
)

// memStore is the in-memory Store used by the workflow tests. It enforces the
// same exclusion semantics the Postgres constraints back-stop.
type memStore struct {
	mu        sync.Mutex
	appts     map[string]model.Appointment
	customers map[string]model.Customer
}

func newMemStore() *memStore {
	return &memStore{
		appts:     map[string]model.Appointment{},
		customers: map[string]model.Customer{},
	}
}

func (m *memStore) addCustomer(c model.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

func (m *memStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	appt, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (m *memStore) GetAppointmentByToken(_ context.Context, tok string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, appt := range m.appts {
		if tok != "" && appt.CustomerConfirmToken == tok {
			return appt, nil
		}
	}
	return model.Appointment{}, ErrNotFound
}

func (m *memStore) ListAppointments(_ context.Context, limit int) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Appointment, 0, len(m.appts))
	for _, appt := range m.appts {
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FindConflict(_ context.Context, scope overlap.Scope) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findConflictLocked(scope), nil
}

func (m *memStore) findConflictLocked(scope overlap.Scope) *model.Appointment {
	var earliest *model.Appointment
	for id := range m.appts {
		appt := m.appts[id]
		if !overlap.Blocks(appt, scope) {
			continue
		}
		if earliest == nil || appt.SlotStart.Before(earliest.SlotStart) {
			earliest = &appt
		}
	}
	return earliest
}

func (m *memStore) CreateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkExclusionLocked(appt); err != nil {
		return model.Appointment{}, err
	}
	m.appts[appt.ID] = appt
	return appt, nil
}

func (m *memStore) SaveAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[appt.ID]; !ok {
		return model.Appointment{}, ErrNotFound
	}
	if err := m.checkExclusionLocked(appt); err != nil {
		return model.Appointment{}, err
	}
	m.appts[appt.ID] = appt
	return appt, nil
}

// checkExclusionLocked mimics the btree_gist constraints: a non-released
// appointment may not overlap another for the same vehicle or same customer.
func (m *memStore) checkExclusionLocked(appt model.Appointment) error {
	if appt.ScheduleState.Released() {
		return nil
	}
	r := rangeOf(appt)
	if c := m.findConflictLocked(overlap.ForVehicle(r, appt.VehicleID, appt.ID)); c != nil {
		return ErrSlotHeld
	}
	if c := m.findConflictLocked(overlap.ForCustomer(r, appt.CustomerID, appt.ID)); c != nil {
		return ErrSlotHeld
	}
	return nil
}

func (m *memStore) GetCustomer(_ context.Context, id string) (model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return model.Customer{}, ErrNotFound
	}
	return c, nil
}

func rangeOf(appt model.Appointment) timeslot.Range {
	return timeslot.Range{Start: appt.SlotStart, End: appt.SlotEnd}
}
