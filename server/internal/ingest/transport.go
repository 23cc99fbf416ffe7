package ingest

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 5 * time.Second

// WebSocketDialer connects to a simulator WebSocket output at url.
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		d := websocket.Dialer{HandshakeTimeout: dialTimeout}
		ws, _, err := d.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return wsConn{ws}, nil
	}
}

type wsConn struct{ *websocket.Conn }

func (c wsConn) ReadLine() (string, error) {
	_, msg, err := c.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// TCPDialer connects to a simulator TCP output at addr.
func TCPDialer(addr string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		d := net.Dialer{Timeout: dialTimeout}
		nc, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return &tcpConn{Conn: nc, r: bufio.NewReader(nc)}, nil
	}
}

type tcpConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *tcpConn) ReadLine() (string, error) {
	return c.r.ReadString('\n')
}
