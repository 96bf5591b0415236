package live

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client is one websocket viewer of a tournament
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room uuid.UUID

	joined chan struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
	// Until the snapshot is queued, broadcasts are held back so that the
	// viewer never applies an update on top of an older snapshot
	ready bool
	held  [][]byte
}

func newClient(hub *Hub, conn *websocket.Conn, room uuid.UUID) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		room:   room,
		joined: make(chan struct{}),
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if !c.ready {
		// One slot stays free for the snapshot
		if len(c.held) >= sendBuffer-1 {
			return false
		}
		c.held = append(c.held, data)
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// release queues first (when non-nil) ahead of every held broadcast and
// switches the client to direct delivery
func (c *Client) release(first []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.ready {
		return
	}
	if first != nil {
		c.send <- first
	}
	for _, data := range c.held {
		c.send <- data
	}
	c.held = nil
	c.ready = true
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// readPump only watches for disconnects; viewers never send anything useful
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("live: unexpected close", "room", c.room, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("live: write failed", "room", c.room, "error", err)
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
