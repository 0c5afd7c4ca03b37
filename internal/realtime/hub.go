// Package realtime serves the bidirectional JSON channel that keeps every
// member of a listening session in sync with its queue. Clients subscribe
// to a session over a websocket and receive the full current queue on
// subscribe and again on every accepted song request.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/queuejam/backend/internal/logging"
	"github.com/queuejam/backend/internal/models"
	"github.com/queuejam/backend/internal/store"
)

// Hub coordinates real-time clients: it tracks which clients are
// subscribed to which session, performs the initial queue sync on
// subscribe, and fans queue updates out to every ready subscriber.
type Hub struct {
	store    *store.Store
	registry *registry
	upgrader websocket.Upgrader

	// mu serializes subscribe-with-sync against broadcast. Without it, a
	// broadcast landing between a subscriber's queue snapshot and its sync
	// enqueue would deliver the fresher frame first and leave the stale
	// sync as the subscriber's final state.
	mu sync.Mutex
}

// NewHub creates a Hub backed by the given session store. Websocket
// upgrades are accepted from the allowed origins and from clients that
// send no Origin header (non-browser clients).
func NewHub(s *store.Store, allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Hub{
		store:    s,
		registry: newRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWS upgrades the request to a websocket and runs the connection's
// read and write pumps. The connection starts unbound; it joins a session
// when its first subscribe message arrives.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadOrigin, "websocket upgrade rejected")
		return
	}

	c := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	go c.writePump()
	go c.readPump()
}

// subscribeClient binds the client to the session (first subscribe wins),
// registers it, and sends the initial state sync. If the client is already
// bound to a different session the message is ignored. If the session does
// not exist yet the client is still registered and simply receives nothing
// until a session with that id appears.
func (h *Hub) subscribeClient(c *Client, sessionID string) {
	if !c.bind(sessionID) {
		slog.Debug("ignoring subscribe for already-bound client",
			slog.String("session_id", sessionID),
			slog.String("bound_session_id", c.session()))
		return
	}

	// Register, snapshot, and enqueue the sync as one step so a concurrent
	// broadcast orders strictly before or strictly after the whole sync.
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.subscribe(sessionID, c)

	// Initial state sync: the current queue goes to this client alone,
	// ahead of any broadcast triggered by a later append.
	queue, err := h.store.Queue(sessionID)
	if err != nil {
		return
	}
	if frame, ok := encodeQueueUpdate(queue); ok {
		c.trySend(frame)
	}
}

// detach removes a disconnected client: it leaves its session's subscriber
// set, if bound, and stops the write pump.
func (h *Hub) detach(c *Client) {
	if sessionID := c.session(); sessionID != "" {
		h.registry.unsubscribe(sessionID, c)
	}
	c.shutdown()
}

// Broadcast pushes the full queue to every currently subscribed client of
// the session. Each client's delivery is independent and best effort; a
// slow or closed client is skipped without affecting the others, and no
// error surfaces to the caller.
func (h *Hub) Broadcast(sessionID string, queue []models.Track) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers := h.registry.subscribersOf(sessionID)
	if len(subscribers) == 0 {
		return
	}

	frame, ok := encodeQueueUpdate(queue)
	if !ok {
		return
	}
	for _, c := range subscribers {
		c.trySend(frame)
	}
}

func encodeQueueUpdate(queue []models.Track) ([]byte, bool) {
	frame, err := json.Marshal(models.QueueUpdatedMessage{
		Type:  models.MessageTypeQueueUpdated,
		Queue: queue,
	})
	if err != nil {
		slog.Error("failed to encode queue update", slog.Any("error", err))
		return nil, false
	}
	return frame, true
}
