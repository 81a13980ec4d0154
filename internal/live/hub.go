// Package live broadcasts recording status updates to WebSocket clients
// (frontend scoreboard/recording indicator). Delivery is best-effort: a slow
// client drops messages, and hub failures never touch the recording path.
package live

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// pingInterval and pongWait drive the connection heartbeat.
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

// Message is the WebSocket message envelope.
type Message struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Hub maintains the set of connected status clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("status client joined", zap.String("client_id", c.id), zap.Int("clients", n))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("status client left", zap.String("client_id", c.id), zap.Int("clients", n))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts one event to every connected client without blocking:
// a client whose send buffer is full misses the message.
func (h *Hub) Notify(event string, payload interface{}) {
	msg := Message{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("status client lagging, message dropped", zap.String("client_id", c.id))
		}
	}
}

func newClientID() string { return uuid.New().String() }
