package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/faq"
)

func TestChat(t *testing.T) {
	h := NewChatHandler(faq.NewResponder(""))

	rec := postJSON(t, h.Chat, "/api/v1/chat", `{"message":"what are your hours?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Reply            string `json:"reply"`
		SimilarQuestions []struct {
			Question string `json:"question"`
		} `json:"similar_questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload.Reply, "Monday-Friday")
}

func TestChat_EmptyMessage(t *testing.T) {
	h := NewChatHandler(faq.NewResponder(""))

	rec := postJSON(t, h.Chat, "/api/v1/chat", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
