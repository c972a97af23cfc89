package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/model"
	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/storage"
)

type CustomerHandler struct {
	repo   *storage.CustomerRepository
	logger *slog.Logger
}

func NewCustomerHandler(repo *storage.CustomerRepository, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{repo: repo, logger: logger}
}

type customerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type vehicleView struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Make       string    `json:"make"`
	Model      string    `json:"model"`
	Year       int       `json:"year"`
	Trim       string    `json:"trim,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Customers serves GET list and POST create on /api/v1/customers.
func (h *CustomerHandler) Customers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		customers, err := h.repo.List(r.Context(), limit)
		if err != nil {
			h.logger.Error("customer list failed", "err", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		views := make([]customerView, 0, len(customers))
		for _, c := range customers {
			views = append(views, toCustomerView(c))
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": views})
	case http.MethodPost:
		h.createCustomer(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CustomerHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(r.Context(), model.Customer{
		ID:    uuid.NewString(),
		Name:  req.Name,
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.logger.Error("customer create failed", "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerView(created))
}

// Get serves /api/v1/customers/get?id=.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	customer, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerView(customer))
}

// Vehicles serves GET list (?customer_id=) and POST create on
// /api/v1/customers/vehicles.
func (h *CustomerHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
		if customerID == "" {
			http.Error(w, "customer_id is required", http.StatusBadRequest)
			return
		}
		vehicles, err := h.repo.ListVehicles(r.Context(), customerID)
		if err != nil {
			h.logger.Error("vehicle list failed", "err", err)
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		views := make([]vehicleView, 0, len(vehicles))
		for _, v := range vehicles {
			views = append(views, toVehicleView(v))
		}
		writeJSON(w, http.StatusOK, map[string]any{"vehicles": views})
	case http.MethodPost:
		h.createVehicle(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CustomerHandler) createVehicle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
		Make       string `json:"make"`
		Model      string `json:"model"`
		Year       int    `json:"year"`
		Trim       string `json:"trim"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Make = strings.TrimSpace(req.Make)
	req.Model = strings.TrimSpace(req.Model)
	if req.CustomerID == "" || req.Make == "" || req.Model == "" {
		http.Error(w, "customer_id, make and model are required", http.StatusBadRequest)
		return
	}

	created, err := h.repo.CreateVehicle(r.Context(), model.Vehicle{
		ID:         uuid.NewString(),
		CustomerID: req.CustomerID,
		Make:       req.Make,
		Model:      req.Model,
		Year:       req.Year,
		Trim:       strings.TrimSpace(req.Trim),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleView(created))
}

func toCustomerView(c model.Customer) customerView {
	return customerView{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt}
}

func toVehicleView(v model.Vehicle) vehicleView {
	return vehicleView{
		ID:         v.ID,
		CustomerID: v.CustomerID,
		Make:       v.Make,
		Model:      v.Model,
		Year:       v.Year,
		Trim:       v.Trim,
		CreatedAt:  v.CreatedAt,
	}
}
