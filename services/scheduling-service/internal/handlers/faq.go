package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/faq"
)

type ChatHandler struct {
	responder *faq.Responder
}

func NewChatHandler(responder *faq.Responder) *ChatHandler {
	return &ChatHandler{responder: responder}
}

// Chat serves POST /api/v1/chat: {"message": "..."} in, a canned answer plus
// related questions out.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.responder.Respond(req.Message))
}
