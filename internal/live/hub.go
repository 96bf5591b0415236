// Package live pushes bracket changes to websocket viewers of a tournament.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	MessageBracketSnapshot = "BRACKET_SNAPSHOT"
	MessageBracketUpdated  = "BRACKET_UPDATED"
	MessageMatchUpdated    = "MATCH_UPDATED"
)

type Message struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	RoomID  uuid.UUID `json:"room_id"`
}

// Hub keeps one room per tournament
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	rooms      map[uuid.UUID]map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rooms:      make(map[uuid.UUID]map[*Client]bool),
	}
}

// Run processes registrations until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			slog.Debug("live: client joined", "room", client.room, "clients", len(h.rooms[client.room]))
			h.mu.Unlock()
			close(client.joined)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, clients := range h.rooms {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// join returns once client receives broadcasts for its room
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		<-client.joined
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove must be called with h.mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok || !clients[client] {
		return
	}
	client.close()
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
		slog.Debug("live: room closed", "room", client.room)
	} else {
		slog.Debug("live: client left", "room", client.room, "clients", len(clients))
	}
}

// BroadcastToRoom sends msg to every client watching room. Slow clients miss
// the message instead of blocking the sender.
func (h *Hub) BroadcastToRoom(room uuid.UUID, msgType string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[room]
	if !ok {
		return
	}

	data, err := json.Marshal(Message{Type: msgType, Payload: payload, RoomID: room})
	if err != nil {
		slog.Error("live: failed to marshal message", "room", room, "type", msgType, "error", err)
		return
	}

	for client := range clients {
		if !client.trySend(data) {
			slog.Warn("live: client send buffer full, dropping message", "room", room, "type", msgType)
		}
	}
}

// RoomSize returns the number of clients watching room
func (h *Hub) RoomSize(room uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
