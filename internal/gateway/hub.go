package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dyike/MarketPulse/consts"
	"github.com/dyike/MarketPulse/internal/dashboard"
	"github.com/dyike/MarketPulse/internal/metrics"
)

// clientBuffer is the per-client queue; a client this far behind loses messages.
const clientBuffer = 64

// Hub fans dashboard events out to WebSocket clients.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger:  log,
		metrics: m,
		clients: make(map[*Client]bool),
	}
}

// Publish encodes ev as a stream envelope and broadcasts it.
func (h *Hub) Publish(ev dashboard.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			if h.metrics != nil {
				h.metrics.WSDroppedTotal.Inc()
			}
		}
	}
}

// stateEnvelope is the first message on every connection.
type stateEnvelope struct {
	Type string `json:"type"`
	dashboard.View
}

// encodeState returns nil when v cannot be encoded; the client then starts
// with the next event.
func (h *Hub) encodeState(v dashboard.View) []byte {
	data, err := json.Marshal(stateEnvelope{Type: consts.EventState, View: v})
	if err != nil {
		h.logger.Error("encode state", "error", err)
		return nil
	}
	return data
}

// Register adds conn as a client, queues initial and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, initial []byte) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
		hub:  h,
	}
	if initial != nil {
		client.send <- initial
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Inc()
	}
	h.logger.Info("ws client connected", "clients", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters c and closes its queue. Safe to call twice.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Dec()
	}
	h.logger.Info("ws client disconnected", "clients", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.RemoveClient(c)
	}
}
