package output

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/cardiowatch/cardiowatch/pkg/backoff"
	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/pkg/wire"
	"github.com/cardiowatch/cardiowatch/simulator/internal/config"
	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 60 * time.Second
	sendTimeout    = 10 * time.Second
)

// Shipper buffers records and sends them to the server's ingest service in
// batches. Write is non-blocking; when the buffer is full the oldest record
// is evicted. Run must be called in a goroutine to drain the buffer.
type Shipper struct {
	endpoint string
	batch    int
	buf      chan *wire.Record
	dialFn   dialFunc // injectable for tests
}

// dialFunc opens a client connection to endpoint.
type dialFunc func(endpoint string) (*grpc.ClientConn, error)

// NewShipper creates a Shipper from the gRPC output config.
func NewShipper(cfg config.GRPCOutputConfig) *Shipper {
	return &Shipper{
		endpoint: cfg.Endpoint,
		batch:    cfg.BatchSize,
		buf:      make(chan *wire.Record, cfg.BufferSize),
		dialFn:   defaultDial,
	}
}

func (s *Shipper) Name() string { return "grpc" }

// Write enqueues r. Readings that are not measurements, such as the alert
// button, are skipped.
func (s *Shipper) Write(r generator.Reading) error {
	rec, ok := toRecord(r)
	if !ok {
		return nil
	}
	s.Ship(rec)
	return nil
}

// Ship enqueues rec, evicting the oldest buffered record if the buffer is full.
func (s *Shipper) Ship(rec *wire.Record) {
	select {
	case s.buf <- rec:
	default:
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest record",
				"patient", rec.PatientID, "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- rec:
		default:
		}
	}
}

// Buffered returns the number of records waiting to be sent.
func (s *Shipper) Buffered() int { return len(s.buf) }

// Close is a no-op; buffered records are lost when Run's context ends.
func (s *Shipper) Close() error { return nil }

// Run drains the buffer, sending batches to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := backoff.New(backoffInitial, backoffMax)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(s.endpoint)
		if err != nil {
			wait := bo.Next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.endpoint,
				"err", err,
				"retry_in", wait)
			if !sleepCtx(ctx, wait) {
				return
			}
			continue
		}

		err = s.drain(ctx, conn, bo)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.Next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.endpoint,
			"err", err,
			"retry_in", wait)
		if !sleepCtx(ctx, wait) {
			return
		}
	}
}

// drain sends batches until a send fails with a transient error or ctx is
// cancelled. The backoff is reset after every successful send.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn, bo *backoff.Backoff) error {
	client := wire.NewIngestClient(conn)

	for {
		var first *wire.Record
		select {
		case <-ctx.Done():
			return nil
		case first = <-s.buf:
		}
		batch := s.collect(first)

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		ack, err := client.AddRecords(sendCtx, &wire.Batch{Records: batch})
		cancel()

		if err != nil {
			if isPermanentError(err) {
				slog.Error("shipper: permanent send error, discarding batch",
					"records", len(batch), "err", err)
				continue
			}
			for i := range batch {
				s.Ship(&batch[i])
			}
			return fmt.Errorf("send: %w", err)
		}

		bo.Reset()
		if ack.Rejected > 0 {
			slog.Warn("shipper: server rejected records",
				"accepted", ack.Accepted, "rejected", ack.Rejected, "message", ack.Message)
		} else {
			slog.Debug("shipper: batch delivered", "records", ack.Accepted)
		}
	}
}

// collect returns first plus up to batch-1 further records already buffered.
func (s *Shipper) collect(first *wire.Record) []wire.Record {
	out := []wire.Record{*first}
	for len(out) < s.batch {
		select {
		case rec := <-s.buf:
			out = append(out, *rec)
		default:
			return out
		}
	}
	return out
}

// isPermanentError returns true for gRPC errors that indicate the batch
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// toRecord converts a measurement reading to a wire record. The second
// result is false for labels outside the record vocabulary and for
// non-numeric data.
func toRecord(r generator.Reading) (*wire.Record, bool) {
	if _, err := types.ParseRecordType(r.Label); err != nil {
		return nil, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(r.Data, "%"), 64)
	if err != nil {
		return nil, false
	}
	return &wire.Record{PatientID: r.PatientID, Value: v, Type: r.Label, Timestamp: r.Timestamp}, true
}

func defaultDial(endpoint string) (*grpc.ClientConn, error) {
	return grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
