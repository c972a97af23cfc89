package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/booking"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error    string        `json:"error"`
	Conflict *conflictView `json:"conflict,omitempty"`
}

type conflictView struct {
	SlotStart time.Time `json:"slot_start"`
	SlotEnd   time.Time `json:"slot_end"`
}

// writeDomainError maps workflow errors onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	if conflict, ok := booking.AsSlotConflict(err); ok {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:    "slot already held",
			Conflict: &conflictView{SlotStart: conflict.Start, SlotEnd: conflict.End},
		})
		return
	}
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, booking.ErrInvalidRange), errors.Is(err, booking.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, booking.ErrNoEmailOnFile), errors.Is(err, booking.ErrTooEarly):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, booking.ErrInvalidToken):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "invalid or unknown token"})
	case errors.Is(err, booking.ErrTokenExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "confirmation link expired"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type serviceItemView struct {
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Notes          string `json:"notes,omitempty"`
}

type appointmentView struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer_id"`
	VehicleID          string            `json:"vehicle_id"`
	TechID             string            `json:"tech_id,omitempty"`
	SlotStart          time.Time         `json:"slot_start"`
	SlotEnd            time.Time         `json:"slot_end"`
	ArrivalWindowStart *time.Time        `json:"arrival_window_start,omitempty"`
	ArrivalWindowEnd   *time.Time        `json:"arrival_window_end,omitempty"`
	WindowLockedAt     *time.Time        `json:"window_locked_at,omitempty"`
	ScheduleState      string            `json:"schedule_state"`
	DispatchStatus     string            `json:"dispatch_status"`
	SchedulingMode     string            `json:"scheduling_mode"`
	Address            string            `json:"address"`
	Notes              string            `json:"notes,omitempty"`
	ConfirmExpires     *time.Time        `json:"customer_confirm_expires,omitempty"`
	ConfirmedAt        *time.Time        `json:"customer_confirmed_at,omitempty"`
	Services           []serviceItemView `json:"services,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func toAppointmentView(appt model.Appointment) appointmentView {
	view := appointmentView{
		ID:                 appt.ID,
		CustomerID:         appt.CustomerID,
		VehicleID:          appt.VehicleID,
		TechID:             appt.TechID,
		SlotStart:          appt.SlotStart,
		SlotEnd:            appt.SlotEnd,
		ArrivalWindowStart: appt.ArrivalWindowStart,
		ArrivalWindowEnd:   appt.ArrivalWindowEnd,
		WindowLockedAt:     appt.WindowLockedAt,
		ScheduleState:      string(appt.ScheduleState),
		DispatchStatus:     string(appt.DispatchStatus),
		SchedulingMode:     appt.SchedulingMode,
		Address:            appt.Address,
		Notes:              appt.Notes,
		ConfirmExpires:     appt.CustomerConfirmExpires,
		ConfirmedAt:        appt.CustomerConfirmedAt,
		CreatedAt:          appt.CreatedAt,
		UpdatedAt:          appt.UpdatedAt,
	}
	for _, item := range appt.Services {
		view.Services = append(view.Services, serviceItemView{
			Kind:           item.Kind,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			Notes:          item.Notes,
		})
	}
	return view
}
