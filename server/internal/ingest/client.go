package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cardiowatch/cardiowatch/pkg/backoff"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

// State is the connection state of a streaming Client.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Backoff
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Backoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Conn is an open line stream.
type Conn interface {
	// ReadLine blocks until the next message arrives. A message may hold
	// several newline-separated samples.
	ReadLine() (string, error)
	Close() error
}

// Dialer opens a Conn.
type Dialer func(ctx context.Context) (Conn, error)

// Client reads simulator lines from a streaming source, stores them through a
// Recorder and reconnects with exponential backoff when the stream drops.
//
// Run drives the cycle Disconnected → Connecting → Connected → Backoff →
// Connecting until ctx is cancelled.
type Client struct {
	source  string
	dial    Dialer
	rec     *Recorder
	initial time.Duration
	max     time.Duration

	state atomic.Int32

	// onState, if set, observes every transition.
	onState func(State)
}

// NewClient creates a Client for source (a URL or address used in logs and
// metrics). Reconnect waits start at initial and are capped at maxWait.
func NewClient(source string, dial Dialer, rec *Recorder, initial, maxWait time.Duration) *Client {
	return &Client{
		source:  source,
		dial:    dial,
		rec:     rec,
		initial: initial,
		max:     maxWait,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Source returns the URL or address the client reads from.
func (c *Client) Source() string {
	return c.source
}

func (c *Client) set(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		slog.Debug("ingest: client state", "source", c.source, "from", prev, "to", s)
	}
	if c.onState != nil {
		c.onState(s)
	}
}

// Run blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	bo := backoff.New(c.initial, c.max)
	defer c.set(Disconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		c.set(Connecting)
		conn, err := c.dial(ctx)
		if err != nil {
			wait := bo.Next()
			c.set(Backoff)
			metrics.IngestReconnects.WithLabelValues(c.source).Inc()
			slog.Error("ingest: dial failed, will retry",
				"source", c.source,
				"err", err,
				"retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		c.set(Connected)
		slog.Info("ingest: connected", "source", c.source)
		bo.Reset()

		err = c.consume(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.Next()
		c.set(Backoff)
		metrics.IngestReconnects.WithLabelValues(c.source).Inc()
		slog.Warn("ingest: connection lost, will reconnect",
			"source", c.source,
			"err", err,
			"retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// consume stores lines from conn until it fails or ctx is cancelled.
func (c *Client) consume(ctx context.Context, conn Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		msg, err := conn.ReadLine()
		if err != nil {
			return err
		}
		for _, text := range strings.Split(msg, "\n") {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			line, err := ParseLine(text)
			if err == nil {
				err = line.Store(c.rec)
			} else {
				metrics.RecordsRejected.WithLabelValues("malformed").Inc()
			}
			if err != nil {
				slog.Debug("ingest: skipping message", "source", c.source, "err", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
