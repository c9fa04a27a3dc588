package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/metrics"
)

// Client-sent event names
const (
	EventWatchVideo   = "watch_video"
	EventNewComment   = "new_comment"
	EventJoinLiveChat = "join_live_chat"
	EventLiveMessage  = "live_message"
)

// Server-sent event names
const (
	EventViewerJoined = "viewer_joined"
	EventCommentAdded = "comment_added"
)

// Message is the wire envelope for both directions of the socket
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds an outbound message, marshaling the payload
func NewMessage(event string, payload interface{}) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Message{Event: event, Data: data}, nil
}

// Room name helpers. Rooms scope event delivery: a personal room per user,
// a viewer room per video and a live-chat room per video.
func UserRoom(userID string) string   { return "user:" + userID }
func VideoRoom(videoID string) string { return "video:" + videoID }
func LiveRoom(videoID string) string  { return "live:" + videoID }

// Hub maintains the set of active clients and their room memberships and
// fans out room-scoped messages
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	logger  *logging.Logger
}

// NewHub creates a new Hub
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		logger:  logger,
	}
}

// register adds a client to the hub
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SocketConnections.Set(float64(total))
	h.logger.WithUserID(client.session.UserID).
		WithField("total_clients", total).
		Info("Socket connected")
}

// unregister removes a client from the hub and from every room it joined.
// Room teardown happens here, implicitly on connection closure.
func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for room, members := range h.rooms {
		if members[client] {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SocketConnections.Set(float64(total))
	h.logger.WithUserID(client.session.UserID).
		WithField("total_clients", total).
		Info("Socket disconnected")
}

// Join adds a client to a room
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
}

// BroadcastToRoom sends a message to every member of a room. A non-nil
// except client is skipped, which implements "to others, not to self".
//
// The lock is held across the sends: unregister closes member channels under
// the write lock, so sending outside the lock races a concurrent disconnect
// into a send on a closed channel. The sends are non-blocking, so holding
// the read lock here never stalls the hub.
func (h *Hub) BroadcastToRoom(room string, message Message, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Slow consumer, drop the message rather than block the room
			h.logger.WithUserID(client.session.UserID).
				WithField("room", room).
				Warn("send buffer full, dropping message")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of members in a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// InRoom reports whether a client is a member of a room
func (h *Hub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][client]
}
