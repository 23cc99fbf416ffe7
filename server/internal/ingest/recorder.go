package ingest

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

// Appender is the write side of the record store.
type Appender interface {
	Append(rec types.MeasurementRecord) error
}

// Trigger is notified after a record for patientID has been stored.
type Trigger interface {
	Trigger(patientID int)
}

// Recorder is the single entry point every ingest path goes through.
type Recorder struct {
	store   Appender
	trigger Trigger
}

// NewRecorder creates a Recorder writing to st. trig may be nil.
func NewRecorder(st Appender, trig Trigger) *Recorder {
	return &Recorder{store: st, trigger: trig}
}

// AddRecord validates recordType, stores the record and notifies the trigger.
// Unknown types return an error wrapping types.ErrInvalidInput; store
// failures are returned as-is.
func (r *Recorder) AddRecord(patientID int, value float64, recordType string, timestamp int64) error {
	typ, err := types.ParseRecordType(recordType)
	if err != nil {
		metrics.RecordsRejected.WithLabelValues("invalid").Inc()
		return fmt.Errorf("ingest: patient %d: %w", patientID, err)
	}

	rec := types.MeasurementRecord{PatientID: patientID, Value: value, Type: typ, Timestamp: timestamp}
	if err := r.store.Append(rec); err != nil {
		reason := "storage"
		if errors.Is(err, types.ErrInvalidInput) {
			reason = "invalid"
		}
		metrics.RecordsRejected.WithLabelValues(reason).Inc()
		return fmt.Errorf("ingest: patient %d: %w", patientID, err)
	}

	metrics.RecordsIngested.WithLabelValues(string(typ)).Inc()
	slog.Debug("ingest: record stored",
		"patient", patientID,
		"type", typ,
		"value", value,
		"timestamp", timestamp,
	)

	if r.trigger != nil {
		r.trigger.Trigger(patientID)
	}
	return nil
}
