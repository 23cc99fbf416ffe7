package ingest

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/pkg/wire"
)

// Receiver implements wire.IngestServer on top of a Recorder.
type Receiver struct {
	rec *Recorder
}

var _ wire.IngestServer = (*Receiver)(nil)

// NewReceiver creates a Receiver storing records through rec.
func NewReceiver(rec *Recorder) *Receiver {
	return &Receiver{rec: rec}
}

// AddRecord stores one record. An unknown record type is InvalidArgument and
// a store failure is Unavailable.
func (r *Receiver) AddRecord(_ context.Context, in *wire.Record) (*wire.Ack, error) {
	if err := r.rec.AddRecord(in.PatientID, in.Value, in.Type, in.Timestamp); err != nil {
		return nil, toStatus(err)
	}
	return &wire.Ack{Accepted: 1}, nil
}

// AddRecords stores a batch. Invalid records are counted in Rejected and
// skipped; the first store failure aborts the batch with Unavailable.
func (r *Receiver) AddRecords(_ context.Context, in *wire.Batch) (*wire.Ack, error) {
	ack := &wire.Ack{}
	for _, rec := range in.Records {
		err := r.rec.AddRecord(rec.PatientID, rec.Value, rec.Type, rec.Timestamp)
		switch {
		case err == nil:
			ack.Accepted++
		case errors.Is(err, types.ErrInvalidInput):
			ack.Rejected++
		default:
			return nil, toStatus(err)
		}
	}

	slog.Debug("receiver: batch stored",
		"records", len(in.Records),
		"accepted", ack.Accepted,
		"rejected", ack.Rejected,
	)
	return ack, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
