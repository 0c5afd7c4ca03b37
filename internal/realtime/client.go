package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/queuejam/backend/internal/models"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong before the peer is considered gone.
	pongWait = 60 * time.Second

	// Ping interval; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are tiny subscribe messages.
	maxMessageSize = 4096

	// Outbound frames queued per client before the client is considered
	// slow and frames are dropped.
	sendBufferSize = 16
)

// Client is a single real-time connection. It is bound to at most one
// session for its lifetime: the binding is set by the first well-formed
// subscribe message and never changes afterwards.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	sessionID string
	closed    bool
}

// bind associates the client with a session. Returns false if the client
// is already bound to a different session; the original binding wins.
func (c *Client) bind(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		c.sessionID = sessionID
		return true
	}
	return c.sessionID == sessionID
}

// session returns the bound session id, or "" while unbound.
func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// trySend queues a frame for delivery. Delivery is best effort: frames for
// closed clients, or clients whose send buffer is full, are dropped.
func (c *Client) trySend(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// shutdown marks the client closed and stops its write pump. Idempotent.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump consumes inbound frames until the connection drops, then
// detaches the client from the hub. Malformed or unrecognized frames are
// ignored; protocol violations never disconnect the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage processes one inbound frame. The only recognized message
// is {type:"subscribe", sessionId}; anything else is silently ignored.
func (c *Client) handleMessage(data []byte) {
	var msg models.SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != models.MessageTypeSubscribe || msg.SessionID == "" {
		return
	}
	c.hub.subscribeClient(c, msg.SessionID)
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
