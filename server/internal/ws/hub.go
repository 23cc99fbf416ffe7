package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardiowatch/cardiowatch/server/internal/alerts"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 64

	// recentOnConnect is how many past events a new client receives.
	recentOnConnect = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string      `json:"event"` // "recent" | "alert" | "summary"
	Data  interface{} `json:"data"`
}

// Summary is broadcast every interval.
type Summary struct {
	GeneratedAt  time.Time `json:"generated_at"`
	Patients     int       `json:"patients"`
	RecentAlerts int       `json:"recent_alerts"`
	Clients      int       `json:"clients"`
}

// History is the dispatcher's event log.
type History interface {
	Recent(limit int) []alerts.Event
	Len() int
}

// PatientLister reports the patients known to the store.
type PatientLister interface {
	Patients() ([]int, error)
}

// Hub streams alert events to WebSocket clients. It is an alerts.Sink: every
// dispatched event is pushed to all clients as soon as Send is called.
type Hub struct {
	history  History
	patients PatientLister
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

var _ alerts.Sink = (*Hub)(nil)

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that replays history to new clients and broadcasts a
// summary every interval.
func New(history History, patients PatientLister, interval time.Duration) *Hub {
	return &Hub{
		history:  history,
		patients: patients,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Name implements alerts.Sink.
func (h *Hub) Name() string { return "stream" }

// Send implements alerts.Sink. Clients whose buffers are full are dropped.
func (h *Hub) Send(ev alerts.Event) error {
	data, err := json.Marshal(Message{Event: "alert", Data: ev})
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// Run starts the summary ticker loop. Run blocks until ctx is cancelled, then
// closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			data, err := json.Marshal(Message{Event: "summary", Data: h.summary()})
			if err != nil {
				continue
			}
			h.broadcast(data)
		}
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// The most recent events are sent immediately on connect. Blocks until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	recent := h.history.Recent(recentOnConnect)
	if recent == nil {
		recent = []alerts.Event{}
	}
	if data, err := json.Marshal(Message{Event: "recent", Data: recent}); err == nil {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) summary() Summary {
	n := 0
	if ids, err := h.patients.Patients(); err == nil {
		n = len(ids)
	} else {
		slog.Warn("ws: summary patients", "err", err)
	}
	return Summary{
		GeneratedAt:  time.Now().UTC(),
		Patients:     n,
		RecentAlerts: h.history.Len(),
		Clients:      h.Count(),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.StreamClients.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.StreamClients.Dec()
	}
	h.mu.Unlock()
}

// broadcast sends under the read lock so unregister cannot close a channel
// mid-send.
func (h *Hub) broadcast(data []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// Clients whose outgoing buffer is full are disconnected.
	for _, c := range slow {
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
		metrics.StreamClients.Dec()
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
