package realtime

import "sync"

// registry maps a session id to the set of clients currently subscribed to
// it. A session with no subscribers has no entry: empty sets are removed,
// not left behind, so churn does not grow the map.
type registry struct {
	mu   sync.Mutex
	subs map[string]map[*Client]struct{}
}

func newRegistry() *registry {
	return &registry{
		subs: make(map[string]map[*Client]struct{}),
	}
}

// subscribe idempotently adds c to the session's set, creating the set if
// absent. It does not validate that the session exists; subscribing to an
// unknown session simply yields no traffic until one is created.
func (r *registry) subscribe(sessionID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[sessionID] == nil {
		r.subs[sessionID] = make(map[*Client]struct{})
	}
	r.subs[sessionID][c] = struct{}{}
}

// unsubscribe removes c from the session's set. No-op if c was never
// subscribed. The session's entry is dropped once its set empties.
func (r *registry) unsubscribe(sessionID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.subs[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.subs, sessionID)
		}
	}
}

// subscribersOf returns a snapshot of the session's subscriber set, safe to
// iterate while subscribes and unsubscribes continue.
func (r *registry) subscribersOf(sessionID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subs[sessionID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
