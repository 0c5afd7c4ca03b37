// Package store owns session identity and queue state. All state is held
// in memory for the lifetime of the process; sessions are never destroyed.
package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/queuejam/backend/internal/models"
)

// ErrSessionNotFound is returned for operations on a session id that was
// never created. Operations never create a session as a side effect.
var ErrSessionNotFound = errors.New("session not found")

// Store maps session ids to their ordered track queues. Queues are
// append-only; insertion order is playback order. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]models.Track
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[string][]models.Track),
	}
}

// CreateSession generates a fresh session id, initializes an empty queue,
// and returns the id. Ids are random UUIDs; an explicit uniqueness check
// guards against overwriting an existing session's queue.
func (s *Store) CreateSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		id := uuid.New().String()
		if _, exists := s.sessions[id]; exists {
			continue
		}
		s.sessions[id] = make([]models.Track, 0)
		return id
	}
}

// Queue returns a copy of the session's queue in append order.
func (s *Store) Queue(sessionID string) ([]models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queue, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return snapshot(queue), nil
}

// AppendTrack appends a track to the session's queue and returns a copy of
// the full post-append queue.
func (s *Store) AppendTrack(sessionID string, track models.Track) ([]models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	queue = append(queue, track)
	s.sessions[sessionID] = queue
	return snapshot(queue), nil
}

// snapshot copies a queue so callers cannot alias the stored slice.
func snapshot(queue []models.Track) []models.Track {
	out := make([]models.Track, len(queue))
	copy(out, queue)
	return out
}
