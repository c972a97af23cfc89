// Package handlers is the HTTP surface of the scheduling service.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/booking"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/observability/metrics"
)

type AppointmentHandler struct {
	svc     *booking.Service
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
}

func NewAppointmentHandler(svc *booking.Service, logger *slog.Logger, m *metrics.BookingMetrics) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger, metrics: m}
}

type serviceItemRequest struct {
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
	Notes          string `json:"notes"`
}

type createAppointmentRequest struct {
	CustomerID         string               `json:"customer_id"`
	VehicleID          string               `json:"vehicle_id"`
	SlotStart          string               `json:"slot_start"`
	SlotEnd            string               `json:"slot_end"`
	Address            string               `json:"address"`
	Notes              string               `json:"notes"`
	SchedulingMode     string               `json:"scheduling_mode"`
	ArrivalWindowStart string               `json:"arrival_window_start"`
	ArrivalWindowEnd   string               `json:"arrival_window_end"`
	Services           []serviceItemRequest `json:"services"`
}

// Appointments serves GET list and POST create on /api/v1/appointments.
func (h *AppointmentHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AppointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	appts, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]appointmentView, 0, len(appts))
	for _, appt := range appts {
		views = append(views, toAppointmentView(appt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": views})
}

func (h *AppointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	params := booking.CreateParams{
		CustomerID:         strings.TrimSpace(req.CustomerID),
		VehicleID:          strings.TrimSpace(req.VehicleID),
		SlotStart:          req.SlotStart,
		SlotEnd:            req.SlotEnd,
		Address:            req.Address,
		Notes:              req.Notes,
		SchedulingMode:     req.SchedulingMode,
		ArrivalWindowStart: req.ArrivalWindowStart,
		ArrivalWindowEnd:   req.ArrivalWindowEnd,
	}
	for _, item := range req.Services {
		params.Services = append(params.Services, model.ServiceItem{
			Kind:           strings.TrimSpace(item.Kind),
			Name:           strings.TrimSpace(item.Name),
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			Notes:          strings.TrimSpace(item.Notes),
		})
	}

	appt, err := h.svc.Create(r.Context(), params)
	if err != nil {
		if _, conflict := booking.AsSlotConflict(err); conflict {
			h.metrics.ObserveSlotConflict("create")
		}
		h.metrics.ObserveBooking("rejected")
		writeDomainError(w, err)
		return
	}
	h.metrics.ObserveBooking("created")
	writeJSON(w, http.StatusCreated, toAppointmentView(appt))
}

// Get serves /api/v1/appointments/get?id=.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentView(appt))
}

type updateAppointmentRequest struct {
	ID                 string  `json:"id"`
	SlotStart          *string `json:"slot_start"`
	SlotEnd            *string `json:"slot_end"`
	Address            *string `json:"address"`
	Notes              *string `json:"notes"`
	ArrivalWindowStart *string `json:"arrival_window_start"`
	ArrivalWindowEnd   *string `json:"arrival_window_end"`
	TechID             *string `json:"tech_id"`
}

// Update serves POST /api/v1/appointments/update.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Update(r.Context(), req.ID, booking.UpdateParams{
		SlotStart:          req.SlotStart,
		SlotEnd:            req.SlotEnd,
		Address:            req.Address,
		Notes:              req.Notes,
		ArrivalWindowStart: req.ArrivalWindowStart,
		ArrivalWindowEnd:   req.ArrivalWindowEnd,
		TechID:             req.TechID,
	})
	if err != nil {
		if _, conflict := booking.AsSlotConflict(err); conflict {
			h.metrics.ObserveSlotConflict("update")
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentView(appt))
}

// Availability serves GET /api/v1/availability. It is a read-only probe and
// never reveals who holds a conflicting slot.
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	// customer_id is optional: without it the probe reports any holder's
	// conflict, with it the asking customer's own bookings are excluded.
	customerID := strings.TrimSpace(q.Get("customer_id"))

	res, err := h.svc.CheckAvailability(r.Context(),
		q.Get("slot_start"), q.Get("slot_end"), customerID, strings.TrimSpace(q.Get("exclude_id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	payload := map[string]any{"available": res.Available}
	if res.Conflict != nil {
		payload["conflict"] = conflictView{SlotStart: res.Conflict.Start, SlotEnd: res.Conflict.End}
	}
	writeJSON(w, http.StatusOK, payload)
}

type transitionRequest struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Status string `json:"status"`
	TTL    int    `json:"ttl_hours"`
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, apply func(transitionRequest) (model.Appointment, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	appt, err := apply(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentView(appt))
}

func (h *AppointmentHandler) InternalConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		appt, err := h.svc.MarkInternalConfirmed(r.Context(), req.ID)
		if err == nil {
			h.metrics.ObserveTransition("schedule", string(appt.ScheduleState))
		}
		return appt, err
	})
}

func (h *AppointmentHandler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		appt, err := h.svc.SendConfirmation(r.Context(), req.ID, time.Duration(req.TTL)*time.Hour)
		if err == nil {
			h.metrics.ObserveTransition("schedule", string(appt.ScheduleState))
		}
		return appt, err
	})
}

func (h *AppointmentHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		return h.svc.ResendConfirmation(r.Context(), req.ID)
	})
}

func (h *AppointmentHandler) SetDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		appt, err := h.svc.SetDraft(r.Context(), req.ID)
		if err == nil {
			h.metrics.ObserveTransition("schedule", string(appt.ScheduleState))
		}
		return appt, err
	})
}

func (h *AppointmentHandler) CustomerConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		appt, err := h.svc.CustomerConfirm(r.Context(), req.ID)
		if err == nil {
			h.metrics.ObserveTransition("schedule", string(appt.ScheduleState))
		}
		return appt, err
	})
}

func (h *AppointmentHandler) LockWindow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		return h.svc.LockWindowNow(r.Context(), req.ID)
	})
}

func (h *AppointmentHandler) ScheduleState(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		appt, err := h.svc.UpdateScheduleState(r.Context(), req.ID, req.State)
		if err == nil {
			h.metrics.ObserveTransition("schedule", string(appt.ScheduleState))
		}
		return appt, err
	})
}

func (h *AppointmentHandler) DispatchStatus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(req transitionRequest) (model.Appointment, error) {
		appt, err := h.svc.UpdateDispatchStatus(r.Context(), req.ID, req.Status)
		if err == nil {
			h.metrics.ObserveTransition("dispatch", string(appt.DispatchStatus))
		}
		return appt, err
	})
}

// Confirm is the public confirmation-link endpoint: GET or POST with
// ?token= and optional ?action=decline.
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	action := strings.TrimSpace(r.URL.Query().Get("action"))

	appt, result, err := h.svc.Redeem(r.Context(), token, action)
	if err != nil {
		h.metrics.ObserveRedemption("failed")
		writeDomainError(w, err)
		return
	}
	h.metrics.ObserveRedemption(strings.ToLower(result))
	writeJSON(w, http.StatusOK, map[string]any{
		"result":      result,
		"appointment": toAppointmentView(appt),
	})
}
