package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/queuejam/backend/internal/models"
	"github.com/queuejam/backend/internal/store"
)

func newTestServer(t *testing.T) (*store.Store, *Hub, *httptest.Server) {
	t.Helper()
	s := store.New()
	hub := NewHub(s, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return s, hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendSubscribe(t *testing.T, conn *websocket.Conn, sessionID string) {
	t.Helper()
	msg := models.SubscribeMessage{Type: models.MessageTypeSubscribe, SessionID: sessionID}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("subscribe write failed: %v", err)
	}
}

// readQueueUpdate reads the next frame and asserts it is a queue_updated
// message, returning its queue.
func readQueueUpdate(t *testing.T, conn *websocket.Conn) []models.Track {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg models.QueueUpdatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	if msg.Type != models.MessageTypeQueueUpdated {
		t.Fatalf("frame type = %q, want %q", msg.Type, models.MessageTypeQueueUpdated)
	}
	return msg.Queue
}

// expectNoFrame asserts that nothing arrives on the connection within the
// given window.
func expectNoFrame(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(window))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("unexpected frame: %s", data)
	}
}

func titleOf(t *testing.T, track models.Track) string {
	t.Helper()
	var got struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(track, &got); err != nil {
		t.Fatalf("track is not valid JSON: %v", err)
	}
	return got.Title
}

func TestSubscribeSyncsEmptyQueue(t *testing.T) {
	s, _, srv := newTestServer(t)
	sessionID := s.CreateSession()

	conn := dial(t, srv)
	sendSubscribe(t, conn, sessionID)

	queue := readQueueUpdate(t, conn)
	if queue == nil {
		t.Fatal("sync queue serialized as null, want []")
	}
	if len(queue) != 0 {
		t.Fatalf("sync queue length = %d, want 0", len(queue))
	}
}

func TestSubscribeSyncsCurrentQueue(t *testing.T) {
	s, _, srv := newTestServer(t)
	sessionID := s.CreateSession()
	s.AppendTrack(sessionID, models.Track(`{"title":"already queued"}`))

	conn := dial(t, srv)
	sendSubscribe(t, conn, sessionID)

	queue := readQueueUpdate(t, conn)
	if len(queue) != 1 {
		t.Fatalf("sync queue length = %d, want 1", len(queue))
	}
	if got := titleOf(t, queue[0]); got != "already queued" {
		t.Errorf("sync track title = %q, want %q", got, "already queued")
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	s, hub, srv := newTestServer(t)
	sessionID := s.CreateSession()

	const n = 3
	conns := make([]*websocket.Conn, n)
	for i := range conns {
		conns[i] = dial(t, srv)
		sendSubscribe(t, conns[i], sessionID)
		// Reading the sync frame guarantees the subscription is registered
		// before the append below.
		readQueueUpdate(t, conns[i])
	}

	queue, err := s.AppendTrack(sessionID, models.Track(`{"title":"X"}`))
	if err != nil {
		t.Fatalf("AppendTrack() error = %v", err)
	}
	hub.Broadcast(sessionID, queue)

	for i, conn := range conns {
		got := readQueueUpdate(t, conn)
		if len(got) != 1 {
			t.Fatalf("subscriber %d queue length = %d, want 1", i, len(got))
		}
		if title := titleOf(t, got[0]); title != "X" {
			t.Errorf("subscriber %d track title = %q, want %q", i, title, "X")
		}
	}
}

func TestClosedSubscriberIsSkipped(t *testing.T) {
	s, hub, srv := newTestServer(t)
	sessionID := s.CreateSession()

	closing := dial(t, srv)
	sendSubscribe(t, closing, sessionID)
	readQueueUpdate(t, closing)

	surviving := dial(t, srv)
	sendSubscribe(t, surviving, sessionID)
	readQueueUpdate(t, surviving)

	closing.Close()
	waitForSubscribers(t, hub, sessionID, 1)

	queue, _ := s.AppendTrack(sessionID, models.Track(`{"title":"X"}`))
	hub.Broadcast(sessionID, queue)

	got := readQueueUpdate(t, surviving)
	if len(got) != 1 {
		t.Fatalf("surviving subscriber queue length = %d, want 1", len(got))
	}
}

func TestDisconnectRemovesRegistryEntry(t *testing.T) {
	s, hub, srv := newTestServer(t)
	sessionID := s.CreateSession()

	conn := dial(t, srv)
	sendSubscribe(t, conn, sessionID)
	readQueueUpdate(t, conn)
	conn.Close()

	waitForSubscribers(t, hub, sessionID, 0)

	hub.registry.mu.Lock()
	_, exists := hub.registry.subs[sessionID]
	hub.registry.mu.Unlock()
	if exists {
		t.Error("expected registry entry to be removed once the last subscriber left")
	}
}

func TestSubscribeToUnknownSession(t *testing.T) {
	_, hub, srv := newTestServer(t)

	conn := dial(t, srv)
	sendSubscribe(t, conn, "not-created-yet")

	// Registered, but no state sync for a session that does not exist.
	waitForSubscribers(t, hub, "not-created-yet", 1)
	expectNoFrame(t, conn, 200*time.Millisecond)
}

func TestSecondSubscribeToDifferentSessionIsIgnored(t *testing.T) {
	s, hub, srv := newTestServer(t)
	first := s.CreateSession()
	second := s.CreateSession()

	conn := dial(t, srv)
	sendSubscribe(t, conn, first)
	readQueueUpdate(t, conn)

	// The handle is bound to its first session for life.
	sendSubscribe(t, conn, second)
	time.Sleep(200 * time.Millisecond)

	if got := len(hub.registry.subscribersOf(second)); got != 0 {
		t.Fatalf("subscribers of second session = %d, want 0", got)
	}

	// Broadcast to the second session first: were the rebind honored, its
	// frame would arrive ahead of the first session's.
	queue, _ := s.AppendTrack(second, models.Track(`{"title":"other"}`))
	hub.Broadcast(second, queue)

	queue, _ = s.AppendTrack(first, models.Track(`{"title":"mine"}`))
	hub.Broadcast(first, queue)

	got := readQueueUpdate(t, conn)
	if title := titleOf(t, got[0]); title != "mine" {
		t.Errorf("track title = %q, want %q", title, "mine")
	}
}

func TestResubscribeToSameSessionResyncs(t *testing.T) {
	s, hub, srv := newTestServer(t)
	sessionID := s.CreateSession()

	conn := dial(t, srv)
	sendSubscribe(t, conn, sessionID)
	readQueueUpdate(t, conn)

	sendSubscribe(t, conn, sessionID)
	readQueueUpdate(t, conn)

	if got := len(hub.registry.subscribersOf(sessionID)); got != 1 {
		t.Errorf("subscribers = %d, want 1 (resubscribe is idempotent)", got)
	}
}

func TestMalformedMessagesAreIgnored(t *testing.T) {
	s, _, srv := newTestServer(t)
	sessionID := s.CreateSession()

	conn := dial(t, srv)

	malformed := []string{
		"not json at all",
		`{"type":"unknown"}`,
		`{"type":"subscribe"}`,
		`{"sessionId":"` + sessionID + `"}`,
		`[]`,
		`42`,
	}
	for _, frame := range malformed {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	// The connection survives protocol violations and a well-formed
	// subscribe still works afterwards.
	sendSubscribe(t, conn, sessionID)
	queue := readQueueUpdate(t, conn)
	if len(queue) != 0 {
		t.Fatalf("sync queue length = %d, want 0", len(queue))
	}
}

// readQueueLengths collects the queue length of every frame that arrives
// until the connection goes quiet.
func readQueueLengths(t *testing.T, conn *websocket.Conn) []int {
	t.Helper()
	var lengths []int
	wait := 2 * time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(wait))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return lengths
		}
		var msg models.QueueUpdatedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		if msg.Type != models.MessageTypeQueueUpdated {
			t.Fatalf("frame type = %q, want %q", msg.Type, models.MessageTypeQueueUpdated)
		}
		lengths = append(lengths, len(msg.Queue))
		wait = 200 * time.Millisecond
	}
}

// A subscribe racing an append-then-broadcast on the same session must
// never leave the subscriber with a stale queue: whatever interleaving
// occurs, frames arrive oldest-first and the last one reflects the
// post-append queue.
func TestSubscribeRacingBroadcastSeesLatestQueue(t *testing.T) {
	s, hub, srv := newTestServer(t)

	for i := 0; i < 20; i++ {
		sessionID := s.CreateSession()
		conn := dial(t, srv)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			queue, err := s.AppendTrack(sessionID, models.Track(`{"title":"X"}`))
			if err != nil {
				t.Errorf("AppendTrack() error = %v", err)
				return
			}
			hub.Broadcast(sessionID, queue)
		}()
		sendSubscribe(t, conn, sessionID)
		wg.Wait()

		lengths := readQueueLengths(t, conn)
		if len(lengths) == 0 {
			t.Fatalf("iteration %d: no frames received", i)
		}
		for j := 1; j < len(lengths); j++ {
			if lengths[j] < lengths[j-1] {
				t.Fatalf("iteration %d: queue went backwards: lengths %v", i, lengths)
			}
		}
		if last := lengths[len(lengths)-1]; last != 1 {
			t.Fatalf("iteration %d: final queue length = %d, want 1 (lengths %v)", i, last, lengths)
		}

		conn.Close()
	}
}

// waitForSubscribers polls until the session has exactly want subscribers,
// failing the test after a bounded wait.
func waitForSubscribers(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(hub.registry.subscribersOf(sessionID)) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	got := len(hub.registry.subscribersOf(sessionID))
	t.Fatalf("subscribers of %s = %d, want %d", sessionID, got, want)
}

// Scenario from the product flow: a member subscribes before any tracks
// exist, sees the empty queue, then sees each accepted request.
func TestSubscribeThenRequestScenario(t *testing.T) {
	s, hub, srv := newTestServer(t)
	sessionID := s.CreateSession()

	conn := dial(t, srv)
	sendSubscribe(t, conn, sessionID)

	if queue := readQueueUpdate(t, conn); len(queue) != 0 {
		t.Fatalf("initial sync queue length = %d, want 0", len(queue))
	}

	for i := 1; i <= 3; i++ {
		queue, err := s.AppendTrack(sessionID, models.Track(fmt.Sprintf(`{"title":"track %d"}`, i)))
		if err != nil {
			t.Fatalf("AppendTrack() error = %v", err)
		}
		hub.Broadcast(sessionID, queue)

		got := readQueueUpdate(t, conn)
		if len(got) != i {
			t.Fatalf("after request %d queue length = %d, want %d", i, len(got), i)
		}
	}
}
