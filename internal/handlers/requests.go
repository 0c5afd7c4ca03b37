package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/queuejam/backend/internal/models"
	"github.com/queuejam/backend/internal/services"
	"github.com/queuejam/backend/internal/store"
)

// RequestHandler accepts song requests against a session's queue.
type RequestHandler struct {
	queue *services.QueueService
}

// NewRequestHandler creates a RequestHandler backed by the given queue service.
func NewRequestHandler(q *services.QueueService) *RequestHandler {
	return &RequestHandler{queue: q}
}

// Submit validates and enqueues a track. Subscribers of the session are
// notified as a side effect; their delivery does not affect the response.
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.RequestSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := h.queue.RequestSong(req.SessionID, req.Track)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "sessionId and track are required")
	case errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to request song", err)
	default:
		writeJSON(w, http.StatusOK, models.RequestSongResponse{Success: true})
	}
}
