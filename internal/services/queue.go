package services

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/queuejam/backend/internal/models"
	"github.com/queuejam/backend/internal/store"
)

// ErrInvalidRequest is returned when a song request is missing its session
// id or track.
var ErrInvalidRequest = errors.New("sessionId and track are required")

// Broadcaster pushes a queue snapshot to every live subscriber of a session.
type Broadcaster interface {
	Broadcast(sessionID string, queue []models.Track)
}

// QueueService validates and applies enqueue operations against the
// session store, then fans the resulting queue out to subscribers.
type QueueService struct {
	store       *store.Store
	broadcaster Broadcaster
}

// NewQueueService creates a QueueService backed by the given store and broadcaster.
func NewQueueService(s *store.Store, b Broadcaster) *QueueService {
	return &QueueService{store: s, broadcaster: b}
}

// RequestSong appends a track to the session's queue and broadcasts the
// full post-append queue to the session's subscribers. The broadcast is
// best effort: the request succeeds no matter how many subscribers, zero
// included, actually receive it. On an unknown session the store error is
// propagated and nothing is broadcast.
func (s *QueueService) RequestSong(sessionID string, track models.Track) ([]models.Track, error) {
	if sessionID == "" || emptyTrack(track) {
		return nil, ErrInvalidRequest
	}

	queue, err := s.store.AppendTrack(sessionID, track)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast(sessionID, queue)

	slog.Debug("track appended",
		slog.String("session_id", sessionID),
		slog.Int("queue_length", len(queue)))

	return queue, nil
}

// emptyTrack reports whether the opaque track payload is absent. The track
// is otherwise not inspected.
func emptyTrack(track models.Track) bool {
	return len(track) == 0 || bytes.Equal(track, []byte("null"))
}
