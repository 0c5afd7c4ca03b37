package models

import "encoding/json"

// Track is an opaque, caller-supplied record describing a playable item.
// It is produced by the catalog search and round-tripped verbatim; the
// backend validates only that it is present.
type Track = json.RawMessage

// Session management
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// Song requests
type RequestSongRequest struct {
	SessionID string `json:"sessionId"`
	Track     Track  `json:"track,omitempty"`
}

type RequestSongResponse struct {
	Success bool `json:"success"`
}

// Catalog search
type TrackResult struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URI         string   `json:"uri"`
	DurationMS  int      `json:"durationMs"`
	AlbumName   string   `json:"albumName"`
	AlbumArtURL string   `json:"albumArtUrl,omitempty"`
	Artists     []string `json:"artists"`
}

// Real-time channel messages. SubscribeMessage is the only recognized
// inbound frame; QueueUpdatedMessage is sent on subscribe (initial sync)
// and on every accepted song request for the session.
type SubscribeMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type QueueUpdatedMessage struct {
	Type  string  `json:"type"`
	Queue []Track `json:"queue"`
}

// Wire values of the "type" field on real-time frames.
const (
	MessageTypeSubscribe    = "subscribe"
	MessageTypeQueueUpdated = "queue_updated"
)

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
