package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/queuejam/backend/internal/models"
	"github.com/queuejam/backend/internal/store"
)

// SessionHandler manages session creation and queue reads.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler backed by the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// Create initializes a new session with an empty queue and returns its id.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := h.store.CreateSession()

	slog.Info("session created", slog.String("session_id", sessionID))

	writeJSON(w, http.StatusOK, models.CreateSessionResponse{SessionID: sessionID})
}

// Queue returns the session's current queue in append order.
func (h *SessionHandler) Queue(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'sessionId' is required")
		return
	}

	queue, err := h.store.Queue(sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, queue)
}
