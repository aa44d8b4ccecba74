package network

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skydrop/server/internal/platform/metrics"
	"github.com/skydrop/server/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Minimum spacing between START actions from one client. Taps are not
	// rate limited; a tap arcade lives on burst input.
	startCooldown = time.Second
)

// PlayerAction represents an incoming command from a presentation client.
type PlayerAction struct {
	Type    string          `json:"type"` // "START", "TAP", "FINISH_EARLY", "REPLAY"
	Payload json.RawMessage `json:"payload"`
}

// Client represents an active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// mu guards closed. The hub is the only caller of closeSend, and
	// enqueue checks the flag under the same lock, so the pump goroutines
	// can never send on a channel the hub has already closed.
	mu     sync.Mutex
	closed bool

	lastStartTime time.Time
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Register adds the client to the hub. When the hub has already shut down
// there is no receiver, so the client tears itself down instead.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.closeSend()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// enqueue hands a payload to this client only, dropping it if the client
// cannot keep up or has already been retired by the hub.
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		metrics.Get().RecordWSError()
		return
	}
	select {
	case c.send <- payload:
		metrics.Get().RecordWSMessage(false)
	default:
		metrics.Get().RecordWSError()
	}
}

// closeSend retires the client's outbound channel. Idempotent.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// sendError reports a rejected action back to this client only.
func (c *Client) sendError(msg string) {
	payload, err := json.Marshal(Frame{Type: "ERROR", Error: msg})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

// ReadPump pumps messages from the websocket connection into the engine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read error: %v", err)
			}
			break
		}
		metrics.Get().RecordWSMessage(true)

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse PlayerAction: %v", err)
			continue
		}

		c.handlePlayerAction(action)
	}
}

func (c *Client) handlePlayerAction(action PlayerAction) {
	switch action.Type {
	case "START":
		c.handleStart(action.Payload)
	case "TAP":
		c.handleTap(action.Payload)
	case "FINISH_EARLY":
		c.hub.engine.FinishEarly()
	case "REPLAY":
		c.handleReplay()
	default:
		c.hub.logger.Warn("Unknown PlayerAction type: %s", action.Type)
	}
}

func (c *Client) handleStart(rawPayload []byte) {
	// Rapid restart spam would churn session generations for nothing.
	if time.Since(c.lastStartTime) < startCooldown {
		c.hub.logger.Warn("START rate limit exceeded")
		return
	}
	c.lastStartTime = time.Now()

	var parsed struct {
		Level int `json:"level"`
	}
	if err := json.Unmarshal(rawPayload, &parsed); err != nil {
		c.sendError("invalid START payload")
		return
	}

	if err := c.hub.engine.Start(parsed.Level); err != nil {
		if errors.Is(err, session.ErrInvalidLevel) {
			c.sendError(err.Error())
			return
		}
		c.hub.logger.Error("START failed: %v", err)
	}
}

func (c *Client) handleTap(rawPayload []byte) {
	var parsed struct {
		ObjectID string `json:"object_id"`
	}
	if err := json.Unmarshal(rawPayload, &parsed); err != nil || parsed.ObjectID == "" {
		c.hub.logger.Warn("Failed to parse TAP payload")
		return
	}
	// Hit-testing happened client-side; the engine only sees the id.
	c.hub.engine.Tap(parsed.ObjectID)
}

// handleReplay sends the full session journal to this client only, so a
// spectator can reconstruct how the attempt unfolded.
func (c *Client) handleReplay() {
	history := c.hub.journal.Replay()
	payload, err := json.Marshal(Frame{Type: "REPLAY", Events: history})
	if err != nil {
		c.hub.logger.Error("Failed to serialize replay: %v", err)
		return
	}
	c.enqueue(payload)
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
