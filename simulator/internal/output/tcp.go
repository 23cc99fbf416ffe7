package output

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cardiowatch/cardiowatch/pkg/wire"
	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

const tcpWriteTimeout = time.Second

// TCPServer streams readings as "patientId,timestamp,label,data" lines to
// every connected TCP client. This is the format the server's TCP ingest
// client reads.
type TCPServer struct {
	lis net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// ListenTCP starts accepting clients on addr.
func ListenTCP(addr string) (*TCPServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &TCPServer{lis: lis, conns: make(map[net.Conn]struct{})}
	go s.accept()
	slog.Info("output: TCP server listening", "addr", lis.Addr().String())
	return s, nil
}

// Addr returns the listening address.
func (s *TCPServer) Addr() net.Addr { return s.lis.Addr() }

// Clients returns the number of connected clients.
func (s *TCPServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *TCPServer) accept() {
	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				slog.Error("output: TCP accept failed", "err", err)
			}
			return
		}
		slog.Info("output: TCP client connected", "remote", conn.RemoteAddr().String())
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
	}
}

func (s *TCPServer) Name() string { return "tcp" }

// Write sends r to every client. Clients that cannot keep up are dropped.
func (s *TCPServer) Write(r generator.Reading) error {
	line := []byte(wire.FormatLine(r.PatientID, r.Timestamp, r.Label, r.Data) + "\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout)) //nolint:errcheck
		if _, err := conn.Write(line); err != nil {
			slog.Info("output: TCP client dropped", "remote", conn.RemoteAddr().String(), "err", err)
			conn.Close()
			delete(s.conns, conn)
		}
	}
	return nil
}

// Close stops accepting and disconnects every client.
func (s *TCPServer) Close() error {
	err := s.lis.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
	return err
}
