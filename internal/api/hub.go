// Package api is an optional HTTP/WebSocket status server for a training
// run: it reports the latest accepted iteration and exposes Prometheus
// metrics. It is pure observability — the owlqn engine never imports it.
package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType distinguishes the shapes pushed to connected clients.
type EventType string

const (
	EventIteration   EventType = "iteration"
	EventTermination EventType = "termination"
	EventHeartbeat    EventType = "heartbeat"
)

// Event is the envelope broadcast to every subscribed client.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// IterationReport is the payload of an EventIteration.
type IterationReport struct {
	Iteration    int     `json:"iteration"`
	Value        float64 `json:"value"`
	GradientNorm float64 `json:"gradient_norm"`
	ElapsedMS    int64   `json:"elapsed_ms"`
}

// TerminationReport is the payload of an EventTermination.
type TerminationReport struct {
	Reason string `json:"reason"`
}

// client is one connected WebSocket subscriber.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast events out to every connected client, disconnecting
// a client whose send buffer is full rather than blocking the
// broadcaster on a slow reader.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]bool

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
}

// NewHub constructs an idle hub; call Run in its own goroutine to start it.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drains the hub's channels until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.RUnlock()

		case <-ticker.C:
			h.publish(EventHeartbeat, struct{}{})

		case <-stop:
			return
		}
	}
}

func (h *Hub) publish(t EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal event payload", zap.Error(err))
		return
	}
	msg, err := json.Marshal(Event{Type: t, Data: data, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping event")
	}
}

// PublishIteration broadcasts one accepted-iteration report.
func (h *Hub) PublishIteration(r IterationReport) { h.publish(EventIteration, r) }

// PublishTermination broadcasts the terminal outcome.
func (h *Hub) PublishTermination(r TerminationReport) { h.publish(EventTermination, r) }

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump discards any client-sent frames; this server only publishes.
// It exists to keep the connection's read side drained so pong frames and
// close frames are observed.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
