// Package gateway fans pipeline events out to GUI clients over
// websockets. The GUI shell subscribes to /events and receives every
// orchestrator event as a JSON envelope.
package gateway

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second

	// sendBuffer is the per-client event backlog; a client that falls
	// further behind is dropped rather than stalling the broadcast.
	sendBuffer = 64
)

// Hub broadcasts pipeline events to every connected websocket client.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan domain.Event
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The GUI shell runs on the operator's machine; origin
			// checking is left to the deployment.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan domain.Event, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetGatewayClients(n)

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast queues an event for every connected client. A client whose
// backlog is full is dropped; the GUI reconnects and resynchronizes.
func (h *Hub) Broadcast(ev domain.Event) {
	h.mu.Lock()
	var dropped []*client
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			dropped = append(dropped, c)
			delete(h.clients, c)
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	observability.RecordBroadcast()
	observability.SetGatewayClients(n)
	for _, c := range dropped {
		h.logger.Printf("dropping slow client %s", c.conn.RemoteAddr())
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
	observability.SetGatewayClients(0)
	return nil
}

// remove unregisters a client that disconnected on its own.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		observability.SetGatewayClients(n)
	}
}

// writePump serializes queued events to the socket and keeps the
// connection alive with pings. It exits when the send channel closes.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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

// readPump discards inbound frames; the event stream is one-way. It
// unregisters the client when the socket closes.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
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
