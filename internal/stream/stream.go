// Package stream is the live-update fan-out: a dynamic set of connected
// clients, each broadcast on successful ingestion, each reaped independently
// on a write failure or timeout. The client-registry/broadcast-over-snapshot
// architecture is the teacher's dashboard websocket hub; only the wire
// transport changes here, from a gorilla/websocket connection to a
// text/event-stream HTTP response, per the spec's explicit SSE contract.
package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names the two frame kinds a client can receive.
type EventType string

const (
	EventWindUpdate EventType = "wind_update"
	EventHeartbeat  EventType = "heartbeat"
)

// Event is one frame broadcast to every connected client.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// DefaultWriteDeadline bounds how long a single client write may block
// before that client is reaped — a slow client must never stall broadcast
// to the others.
const DefaultWriteDeadline = 5 * time.Second

// HeartbeatInterval matches the spec's 30-second idle heartbeat.
const HeartbeatInterval = 30 * time.Second

// client is a registered stream subscriber: a buffered outbound queue plus
// a done signal closed when the handler serving it returns.
type client struct {
	id   string
	out  chan Event
	done chan struct{}
}

// Hub owns the set of active clients. It holds its lock only for the brief
// membership mutations (subscribe/unsubscribe/reap); broadcast iterates a
// snapshot of the set and writes to each client independently.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	snapshotMu sync.RWMutex
	snapshot   Event
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// SetSnapshot replaces the snapshot sent to every newly subscribed client so
// it doesn't have to wait for the next broadcast tick.
func (h *Hub) SetSnapshot(evt Event) {
	h.snapshotMu.Lock()
	h.snapshot = evt
	h.snapshotMu.Unlock()
}

func (h *Hub) currentSnapshot() (Event, bool) {
	h.snapshotMu.RLock()
	defer h.snapshotMu.RUnlock()
	if h.snapshot.Type == "" {
		return Event{}, false
	}
	return h.snapshot, true
}

// Subscription is the handle returned to an HTTP handler serving one
// connection. Events arrives in ingestion order; Close reaps it.
type Subscription struct {
	hub *Hub
	c   *client
}

// Subscribe registers a new client and, if a snapshot is available, enqueues
// it immediately so the caller's first read sees current state.
func (h *Hub) Subscribe() *Subscription {
	c := &client{
		id:   uuid.NewString(),
		out:  make(chan Event, 16),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	if evt, ok := h.currentSnapshot(); ok {
		select {
		case c.out <- evt:
		default:
		}
	}

	return &Subscription{hub: h, c: c}
}

// Events returns the channel an HTTP handler should range over to write
// frames to its connection.
func (s *Subscription) Events() <-chan Event { return s.c.out }

// Close unregisters the client. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.clients, s.c.id)
	s.hub.mu.Unlock()
}

// Broadcast pushes evt to every currently connected client. A client whose
// outbound queue is full (a slow reader that hasn't kept up) is reaped
// rather than allowed to block the others.
func (h *Hub) Broadcast(evt Event) {
	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	var stale []string
	for _, c := range snapshot {
		select {
		case c.out <- evt:
		default:
			stale = append(stale, c.id)
		}
	}

	if len(stale) > 0 {
		h.mu.Lock()
		for _, id := range stale {
			delete(h.clients, id)
		}
		h.mu.Unlock()
	}
}

// Heartbeat broadcasts an idle keep-alive frame.
func (h *Hub) Heartbeat() {
	h.Broadcast(Event{Type: EventHeartbeat})
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalFrame renders an Event as a single text/event-stream "data:" line,
// terminated per the SSE framing rules (a blank line ends the frame).
func MarshalFrame(evt Event) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}
