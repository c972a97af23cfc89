// Package alerts turns scheduling-service domain events into admin email
// subject/body pairs.
package alerts

import (
	"encoding/json"
	"fmt"
	"time"
)

// Topics this service subscribes to.
const (
	TopicBooked          = "appointment.booked"
	TopicStateChanged    = "appointment.state_changed"
	TopicDispatchChanged = "appointment.dispatch_changed"
)

type bookedEvent struct {
	AppointmentID string    `json:"appointmentId"`
	CustomerID    string    `json:"customerId"`
	VehicleID     string    `json:"vehicleId"`
	SlotStart     time.Time `json:"slotStart"`
	SlotEnd       time.Time `json:"slotEnd"`
	Address       string    `json:"address"`
}

type stateChangedEvent struct {
	AppointmentID string    `json:"appointmentId"`
	CustomerID    string    `json:"customerId"`
	ScheduleState string    `json:"scheduleState"`
	SlotStart     time.Time `json:"slotStart"`
	SlotEnd       time.Time `json:"slotEnd"`
}

type dispatchChangedEvent struct {
	AppointmentID  string `json:"appointmentId"`
	TechID         string `json:"techId"`
	DispatchStatus string `json:"dispatchStatus"`
}

// Alert is a rendered admin email plus the appointment it concerns.
type Alert struct {
	AppointmentID string
	Subject       string
	Body          string
}

// Build renders an alert for a topic's payload. An empty appointment id in
// the payload is treated as malformed.
func Build(topic string, payload []byte) (Alert, error) {
	switch topic {
	case TopicBooked:
		var evt bookedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return Alert{}, fmt.Errorf("decode %s: %w", topic, err)
		}
		if evt.AppointmentID == "" {
			return Alert{}, fmt.Errorf("%s: missing appointment id", topic)
		}
		return Alert{
			AppointmentID: evt.AppointmentID,
			Subject:       "New appointment booked",
			Body: fmt.Sprintf("Appointment %s booked.\n\nCustomer: %s\nVehicle: %s\nSlot: %s - %s\nAddress: %s",
				evt.AppointmentID, evt.CustomerID, evt.VehicleID,
				evt.SlotStart.Format(time.RFC1123), evt.SlotEnd.Format(time.Kitchen), evt.Address),
		}, nil

	case TopicStateChanged:
		var evt stateChangedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return Alert{}, fmt.Errorf("decode %s: %w", topic, err)
		}
		if evt.AppointmentID == "" {
			return Alert{}, fmt.Errorf("%s: missing appointment id", topic)
		}
		return Alert{
			AppointmentID: evt.AppointmentID,
			Subject:       fmt.Sprintf("Appointment %s is now %s", evt.AppointmentID, evt.ScheduleState),
			Body: fmt.Sprintf("Appointment %s moved to %s.\n\nCustomer: %s\nSlot: %s - %s",
				evt.AppointmentID, evt.ScheduleState, evt.CustomerID,
				evt.SlotStart.Format(time.RFC1123), evt.SlotEnd.Format(time.Kitchen)),
		}, nil

	case TopicDispatchChanged:
		var evt dispatchChangedEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return Alert{}, fmt.Errorf("decode %s: %w", topic, err)
		}
		if evt.AppointmentID == "" {
			return Alert{}, fmt.Errorf("%s: missing appointment id", topic)
		}
		body := fmt.Sprintf("Appointment %s dispatch status is %s.", evt.AppointmentID, evt.DispatchStatus)
		if evt.TechID != "" {
			body += "\nTechnician: " + evt.TechID
		}
		return Alert{
			AppointmentID: evt.AppointmentID,
			Subject:       fmt.Sprintf("Dispatch update: %s", evt.DispatchStatus),
			Body:          body,
		}, nil
	}
	return Alert{}, fmt.Errorf("unsupported topic %q", topic)
}
