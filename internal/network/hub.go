// Package network is the presentation surface of the engine: WebSocket
// clients render the session state and forward taps into it. The hub is the
// only listener the engine knows about; everything else is frames on a wire.
package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/skydrop/server/internal/domain/object"
	"github.com/skydrop/server/internal/events"
	"github.com/skydrop/server/internal/platform/logger"
	"github.com/skydrop/server/internal/platform/metrics"
	"github.com/skydrop/server/internal/session"
)

// Frame is the wire envelope for every server-to-client message.
type Frame struct {
	Type    string         `json:"type"` // PHASE, OBJECTS, FEEDBACK, REPLAY, ERROR
	State   *session.State `json:"state,omitempty"`
	Objects []object.View  `json:"objects,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Error   string         `json:"error,omitempty"`
	Events  []events.Event `json:"events,omitempty"`
}

// Hub maintains the set of active clients and broadcasts session frames to
// them. It implements session.Listener.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *logger.Logger

	engine  *session.Controller
	journal *events.Log

	// Last known frames, replayed to clients that connect mid-level.
	lastPhase   []byte
	lastObjects []byte
}

// NewHub initializes a new WebSocket hub bound to the session engine.
func NewHub(log *logger.Logger, engine *session.Controller, journal *events.Log) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log,
		engine:     engine,
		journal:    journal,
	}
}

// Run starts the hub's main loop to handle client connections and
// broadcasts. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Unblock any client stuck handing itself to register or
			// unregister, then drop every live connection.
			close(h.done)
			h.mu.Lock()
			dropped := len(h.clients)
			for client := range h.clients {
				client.closeSend()
				if client.conn != nil {
					client.conn.Close()
				}
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub shut down, dropped %d clients", dropped)
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			lastPhase, lastObjects := h.lastPhase, h.lastObjects
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")

			// Bring the newcomer up to date before any live traffic.
			if lastPhase != nil {
				client.enqueue(lastPhase)
			}
			if lastObjects != nil {
				client.enqueue(lastObjects)
			}
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage(false)
				default:
					client.closeSend()
					delete(h.clients, client)
					metrics.Get().RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop hands a client back to the hub for removal. After shutdown there is
// no receiver on unregister, so the client tears itself down instead of
// blocking its pump goroutine forever.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.closeSend()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// OnPhaseChange implements session.Listener by broadcasting the new state.
func (h *Hub) OnPhaseChange(state session.State) {
	h.sendFrame(Frame{Type: "PHASE", State: &state}, true)
}

// OnObjectsChanged implements session.Listener by broadcasting the live
// objects in render order.
func (h *Hub) OnObjectsChanged(objects []object.View) {
	h.sendFrame(Frame{Type: "OBJECTS", Objects: objects}, true)
}

// sendFrame serializes and broadcasts a frame. The engine loop calls this,
// so a saturated hub drops the frame rather than blocking the session.
func (h *Hub) sendFrame(frame Frame, cache bool) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to serialize %s frame: %v", frame.Type, err)
		return
	}

	if cache {
		h.mu.Lock()
		switch frame.Type {
		case "PHASE":
			h.lastPhase = payload
		case "OBJECTS":
			h.lastObjects = payload
		}
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- payload:
	default:
		metrics.Get().RecordWSError()
		h.logger.Warn("Broadcast queue full, dropping %s frame", frame.Type)
	}
}

// HapticsBridge forwards haptic cues to presentation clients as
// fire-and-forget FEEDBACK frames. It implements feedback.Feedback; a full
// queue or a dead socket silently loses the cue, never the game state.
type HapticsBridge struct {
	hub *Hub
}

// NewHapticsBridge creates a feedback collaborator backed by the hub.
func NewHapticsBridge(hub *Hub) *HapticsBridge {
	return &HapticsBridge{hub: hub}
}

// LightImpact broadcasts a light haptic cue.
func (b *HapticsBridge) LightImpact() {
	b.hub.sendFrame(Frame{Type: "FEEDBACK", Kind: "light"}, false)
}

// Success broadcasts a success haptic cue.
func (b *HapticsBridge) Success() {
	b.hub.sendFrame(Frame{Type: "FEEDBACK", Kind: "success"}, false)
}
