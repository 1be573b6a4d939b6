// Package opsfeed broadcasts pipeline lifecycle events to connected
// operations-dashboard clients over a WebSocket hub, the way the
// teacher's consumer broadcast transaction/metrics updates to its own
// dashboard. It is wired into internal/pipeline as a Listener rather
// than a stage handler, so a stalled or disconnected dashboard client
// can never slow down a transaction.
package opsfeed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one connected dashboard websocket, with its own buffered
// send channel so a slow reader can't block a broadcast.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub owns the set of connected dashboard clients directly under a
// mutex, the same guarded-map discipline internal/dedup.Store uses for
// its correlation tables, rather than funneling registration through a
// dedicated actor goroutine: there's no ordering dependency between
// register/unregister/broadcast that would require one.
type Hub struct {
	log *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub constructs an empty Hub, ready to accept connections
// immediately — there is no background loop to start.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("dashboard client connected", zap.Int("clients", n))
}

// removeClient is idempotent: a client already removed by a concurrent
// call (one from Broadcast finding a full send buffer, one from
// readPump's own disconnect) is a no-op on the second call.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Debug("dashboard client disconnected", zap.Int("clients", n))
	}
}

// ClientCount reports how many dashboard clients are currently
// connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// event is the envelope every dashboard message is wrapped in.
type event struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// Broadcast matches pipeline.broadcastFunc's shape so a Hub can be
// wired directly into a pipeline.FuncListener. It marshals once and
// fans the encoded message out to every client's own buffered channel;
// a client whose buffer is already full is dropped rather than letting
// one slow reader apply backpressure to the rest.
func (h *Hub) Broadcast(eventType string, payload map[string]interface{}) {
	data, err := json.Marshal(event{Type: eventType, Data: payload})
	if err != nil {
		h.log.Warn("failed to marshal dashboard event", zap.Error(err))
		return
	}

	var stale []*Client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.log.Warn("dashboard client send buffer full, dropping client", zap.String("type", eventType))
		h.removeClient(c)
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and
// registers it with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 64), hub: h}
	h.addClient(c)

	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
