package output

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardiowatch/cardiowatch/pkg/wire"
	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketServer broadcasts each reading as one text message in the
// streaming line format to every connected client.
type WebSocketServer struct {
	lis net.Listener
	srv *http.Server

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// ListenWebSocket starts serving WebSocket upgrades on addr at any path.
func ListenWebSocket(addr string) (*WebSocketServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &WebSocketServer{lis: lis, clients: make(map[*wsClient]struct{})}
	s.srv = &http.Server{Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("output: WebSocket server stopped", "err", err)
		}
	}()
	slog.Info("output: WebSocket server listening", "addr", lis.Addr().String())
	return s, nil
}

// Addr returns the listening address.
func (s *WebSocketServer) Addr() net.Addr { return s.lis.Addr() }

// Clients returns the number of connected clients.
func (s *WebSocketServer) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("output: WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	slog.Info("output: WebSocket client connected", "remote", r.RemoteAddr)

	go c.writePump()
	go s.readPump(c)
}

func (s *WebSocketServer) Name() string { return "websocket" }

// Write queues r for every client. Clients whose buffer is full are dropped.
func (s *WebSocketServer) Write(r generator.Reading) error {
	msg := []byte(wire.FormatLine(r.PatientID, r.Timestamp, r.Label, r.Data))

	var slow []*wsClient
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("output: WebSocket client too slow, dropping", "remote", c.conn.RemoteAddr().String())
		s.remove(c)
	}
	return nil
}

// Close shuts the HTTP server down and disconnects every client.
func (s *WebSocketServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	return err
}

func (s *WebSocketServer) remove(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		close(c.send)
		delete(s.clients, c)
	}
}

// writePump delivers queued messages and keeps the connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and unregisters the client on disconnect.
func (s *WebSocketServer) readPump(c *wsClient) {
	defer s.remove(c)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
