package main

import (
	"fmt"
	"sync"

	"github.com/edudesk/campus-chat/internal/data"
	"github.com/edudesk/campus-chat/internal/metrics"
)

// Event is the payload pushed into a user's room. Type is one of "typing",
// "message", "delivered" or "seen"; the remaining fields are filled per type.
type Event struct {
	Type           string        `json:"type"`
	From           string        `json:"from,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	MessageID      string        `json:"messageId,omitempty"`
	State          string        `json:"state,omitempty"`
	Message        *data.Message `json:"message,omitempty"`
}

// Sender defines the minimal interface the hub needs from a connection: the
// ability to push events to the connected client.
type Sender interface {
	Send(*Event) error
}

// ConnectionHub manages active realtime connections for connected users.
// It maps user ids to one or more active connections (the user's "room") so
// the server can push events to all currently-connected endpoints for a user.
// It holds no persistent state: a restart drops every room without data loss.
type ConnectionHub struct {
	mu     sync.RWMutex
	rooms  map[string]map[int64]Sender
	nextID int64
}

// NewConnectionHub creates a new hub instance.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{rooms: make(map[string]map[int64]Sender)}
}

// Register adds a connection to the given user's room and returns a
// connection id used later to unregister it when the connection closes.
func (h *ConnectionHub) Register(userID string, s Sender) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[userID]; !ok {
		h.rooms[userID] = make(map[int64]Sender)
	}

	h.nextID++
	id := h.nextID
	h.rooms[userID][id] = s
	metrics.ActiveConnections.Inc()
	return id
}

// Unregister removes a previously-registered connection from the user's room.
// Safe to call more than once for the same id.
func (h *ConnectionHub) Unregister(userID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[userID]
	if !ok {
		return
	}
	if _, ok := conns[id]; !ok {
		return
	}
	delete(conns, id)
	metrics.ActiveConnections.Dec()
	if len(conns) == 0 {
		delete(h.rooms, userID)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (h *ConnectionHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID]) > 0
}

// SendToUser attempts to push the event to all currently-connected endpoints
// for the given user. If the user is not connected it returns an error; the
// caller decides whether that matters. For typing and state pushes it never
// does, since the stores remain the source of truth.
//
// Delivery is best-effort: every connection is tried, the first error is
// returned, and connections that failed to send are unregistered so the hub
// never keeps multicasting to a dead socket.
func (h *ConnectionHub) SendToUser(userID string, ev *Event) error {
	// Snapshot the room under the read lock; senders may register or leave
	// while we fan out.
	h.mu.RLock()
	conns := h.rooms[userID]
	snapshot := make(map[int64]Sender, len(conns))
	for id, st := range conns {
		snapshot[id] = st
	}
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		return fmt.Errorf("user %s not connected", userID)
	}

	var firstErr error
	var failedIDs []int64

	for id, st := range snapshot {
		if err := st.Send(ev); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	for _, id := range failedIDs {
		h.Unregister(userID, id)
	}

	return firstErr
}
