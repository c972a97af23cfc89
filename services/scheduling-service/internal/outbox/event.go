// Package outbox implements the transactional outbox: domain events are
// written in the same transaction as the state change that caused them, then
// relayed to Kafka by a polling publisher.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

// Topic names. One event type per topic.
const (
	TopicAppointmentBooked          = "appointment.booked"
	TopicAppointmentStateChanged    = "appointment.state_changed"
	TopicAppointmentDispatchChanged = "appointment.dispatch_changed"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type bookedPayload struct {
	AppointmentID string    `json:"appointmentId"`
	CustomerID    string    `json:"customerId"`
	VehicleID     string    `json:"vehicleId"`
	SlotStart     time.Time `json:"slotStart"`
	SlotEnd       time.Time `json:"slotEnd"`
	Address       string    `json:"address"`
}

type stateChangedPayload struct {
	AppointmentID string    `json:"appointmentId"`
	CustomerID    string    `json:"customerId"`
	ScheduleState string    `json:"scheduleState"`
	SlotStart     time.Time `json:"slotStart"`
	SlotEnd       time.Time `json:"slotEnd"`
}

type dispatchChangedPayload struct {
	AppointmentID  string `json:"appointmentId"`
	TechID         string `json:"techId,omitempty"`
	DispatchStatus string `json:"dispatchStatus"`
}

// Booked builds the appointment.booked event for a freshly created appointment.
func Booked(appt model.Appointment) Event {
	payload, _ := json.Marshal(bookedPayload{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		VehicleID:     appt.VehicleID,
		SlotStart:     appt.SlotStart,
		SlotEnd:       appt.SlotEnd,
		Address:       appt.Address,
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     TopicAppointmentBooked,
		Payload:       payload,
	}
}

// StateChanged builds the event for a schedule-state transition.
func StateChanged(appt model.Appointment) Event {
	payload, _ := json.Marshal(stateChangedPayload{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		ScheduleState: string(appt.ScheduleState),
		SlotStart:     appt.SlotStart,
		SlotEnd:       appt.SlotEnd,
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     TopicAppointmentStateChanged,
		Payload:       payload,
	}
}

// DispatchChanged builds the event for a field-ops status transition.
func DispatchChanged(appt model.Appointment) Event {
	payload, _ := json.Marshal(dispatchChangedPayload{
		AppointmentID:  appt.ID,
		TechID:         appt.TechID,
		DispatchStatus: string(appt.DispatchStatus),
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     TopicAppointmentDispatchChanged,
		Payload:       payload,
	}
}
