package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardiowatch/cardiowatch/server/internal/store"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) add(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) seen(s State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.states {
		if x == s {
			return true
		}
	}
	return false
}

func TestClient_WebSocketStoresLines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("1,1000,ECG,72"))                        //nolint:errcheck
		conn.WriteMessage(websocket.TextMessage, []byte("1,2000,Saturation,97%\n2,2000,ECG,80")) //nolint:errcheck
		conn.WriteMessage(websocket.TextMessage, []byte("1,3000,Alert,triggered"))               //nolint:errcheck
		conn.WriteMessage(websocket.TextMessage, []byte("not a line"))                           //nolint:errcheck
		// Hold the connection open until the client goes away.
		conn.ReadMessage() //nolint:errcheck
	}))
	defer srv.Close()

	st := store.NewMemory()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := NewClient(url, WebSocketDialer(url), NewRecorder(st, nil), 10*time.Millisecond, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	waitFor(t, "three stored records", func() bool { return st.Count() == 3 })
	if c.State() != Connected {
		t.Errorf("State: got %v, want connected", c.State())
	}

	cancel()
	<-done
	if c.State() != Disconnected {
		t.Errorf("State after cancel: got %v, want disconnected", c.State())
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		for i := 0; ; i++ {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			fmt.Fprintf(conn, "1,%d,ECG,70\n", 1000+i)
			conn.Close()
		}
	}()

	st := store.NewMemory()
	c := NewClient(lis.Addr().String(), TCPDialer(lis.Addr().String()), NewRecorder(st, nil),
		10*time.Millisecond, 20*time.Millisecond)
	states := &stateLog{}
	c.onState = states.add

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, "records from at least two connections", func() bool { return st.Len(1) >= 2 })
	for _, s := range []State{Connecting, Connected, Backoff} {
		if !states.seen(s) {
			t.Errorf("state %v never entered", s)
		}
	}
}

func TestClient_DialFailureBacksOff(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	dial := func(context.Context) (Conn, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, errors.New("refused")
	}
	c := NewClient("nowhere", dial, NewRecorder(store.NewMemory(), nil), 5*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	waitFor(t, "repeated dial attempts", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	})
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Backoff:      "backoff",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("%d.String(): got %q, want %q", s, s.String(), w)
		}
	}
}
