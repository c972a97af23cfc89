package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/catalog"
)

type CatalogHandler struct {
	client *catalog.Client
	logger *slog.Logger
}

func NewCatalogHandler(client *catalog.Client, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{client: client, logger: logger}
}

// Makes serves GET /api/v1/catalog/makes.
func (h *CatalogHandler) Makes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	makes, err := h.client.Makes(r.Context())
	if err != nil {
		h.logger.Error("catalog makes lookup failed", "err", err)
		http.Error(w, "vehicle catalog unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"makes": makes})
}

// Models serves GET /api/v1/catalog/models?make=&year=.
func (h *CatalogHandler) Models(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	make := strings.TrimSpace(q.Get("make"))
	if make == "" {
		http.Error(w, "make is required", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil || year < 1980 || year > 2100 {
		http.Error(w, "year must be a reasonable model year", http.StatusBadRequest)
		return
	}

	models, err := h.client.Models(r.Context(), make, year)
	if err != nil {
		h.logger.Error("catalog models lookup failed", "make", make, "year", year, "err", err)
		http.Error(w, "vehicle catalog unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}
