package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/padel-bracket/internal/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Viewers are read-only and unauthenticated
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotFunc loads the current state of a room
type SnapshotFunc func(ctx context.Context) (any, error)

// ServeWs upgrades the request and adds the connection to the room of the
// tournament. The snapshot is loaded after the client joined and is sent
// before any update, so nothing published in between is lost.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, room uuid.UUID, snapshot SnapshotFunc) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		slog.Warn("live: websocket upgrade failed", "room", room, "error", err)
		return
	}

	client := newClient(h, conn, room)
	if !h.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	if snapshot == nil {
		client.release(nil)
		return
	}

	payload, err := snapshot(r.Context())
	if err != nil {
		slog.Error("live: failed to load snapshot", "room", room, "error", err)
		// readPump notices the closed connection and leaves the room
		conn.Close()
		return
	}

	data, err := json.Marshal(Message{Type: MessageBracketSnapshot, Payload: payload, RoomID: room})
	if err != nil {
		slog.Error("live: failed to marshal snapshot", "room", room, "error", err)
		data = nil
	}
	client.release(data)
}

// Subscribe forwards bracket events from bus to the matching rooms. The
// returned function stops forwarding.
func (h *Hub) Subscribe(bus *events.Bus) func() {
	cancels := []func(){
		events.Subscribe(bus, func(ev events.BracketBuilt) {
			h.BroadcastToRoom(ev.TournamentID, MessageBracketUpdated, map[string]any{
				"status":  ev.Status,
				"matches": ev.Matches,
			})
		}),
		events.Subscribe(bus, func(ev events.MatchDecided) {
			h.BroadcastToRoom(ev.TournamentID, MessageMatchUpdated, map[string]any{
				"match":     ev.Match,
				"next":      ev.Next,
				"completed": ev.Completed,
			})
		}),
		events.Subscribe(bus, func(ev events.MatchUpdated) {
			h.BroadcastToRoom(ev.TournamentID, MessageMatchUpdated, map[string]any{
				"match": ev.Match,
			})
		}),
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
