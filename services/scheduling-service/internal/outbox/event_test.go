package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

func TestBookedEvent(t *testing.T) {
	appt := model.Appointment{
		ID:         "a1",
		CustomerID: "c1",
		VehicleID:  "v1",
		SlotStart:  time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		SlotEnd:    time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC),
		Address:    "12 Elm St",
	}

	evt := Booked(appt)
	assert.Equal(t, "appointment", evt.AggregateType)
	assert.Equal(t, "a1", evt.AggregateID)
	assert.Equal(t, TopicAppointmentBooked, evt.EventType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &decoded))
	assert.Equal(t, "c1", decoded["customerId"])
	assert.Equal(t, "12 Elm St", decoded["address"])
}

func TestStateChangedEvent(t *testing.T) {
	appt := model.Appointment{ID: "a1", CustomerID: "c1", ScheduleState: model.StateCustomerConfirmed}

	evt := StateChanged(appt)
	assert.Equal(t, TopicAppointmentStateChanged, evt.EventType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &decoded))
	assert.Equal(t, "CUSTOMER_CONFIRMED", decoded["scheduleState"])
}

func TestDispatchChangedEvent_OmitsEmptyTech(t *testing.T) {
	evt := DispatchChanged(model.Appointment{ID: "a1", DispatchStatus: model.DispatchAssigned})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(evt.Payload, &decoded))
	assert.Equal(t, "ASSIGNED", decoded["dispatchStatus"])
	_, present := decoded["techId"]
	assert.False(t, present)
}
