// Package api serves the HTTP read surface used by desktop shells that want
// conversation data without holding a WebSocket open.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/quillspace/server/conversation"
	"github.com/quillspace/server/logger"
)

// ConversationSource is the slice of the lifecycle manager the handlers
// read from. Serving from the manager rather than the persistence gateway
// keeps responses ahead of the debounced save and excludes soft-deleted
// conversations still inside their undo window.
type ConversationSource interface {
	Summaries() []conversation.Summary
	Get(id string) (conversation.Conversation, bool)
}

type ConversationHandler struct {
	source ConversationSource
}

func NewConversationHandler(source ConversationSource) *ConversationHandler {
	return &ConversationHandler{source: source}
}

func (h *ConversationHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.HandleList)
	mux.HandleFunc("GET /api/conversations/{id}", h.HandleGet)
}

func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	log := logger.NewRequestLogger()

	summaries := h.source.Summaries()
	log.Debug("served conversation listing", "count", len(summaries))

	writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	log := logger.NewRequestLogger()
	id := r.PathValue("id")

	c, ok := h.source.Get(id)
	if !ok {
		log.Debug("conversation not found", "conversationId", id)
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
