package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

// ErrMalformedLine is returned for lines that do not match a known format.
var ErrMalformedLine = errors.New("malformed line")

// Line is one parsed simulator sample. Data is kept raw because the
// simulator also emits non-numeric labels such as the alert button.
type Line struct {
	PatientID int
	Timestamp int64
	Label     string
	Data      string
}

// ParseLine parses the streaming format "patientId,timestamp,label,data".
func ParseLine(line string) (Line, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 4 {
		return Line{}, fmt.Errorf("ingest: %q: want 4 fields, got %d: %w", line, len(parts), ErrMalformedLine)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return build(line, parts[0], parts[1], parts[2], parts[3])
}

// ParseFileLine parses the file format
// "Patient ID: 1, Timestamp: 1700000000000, Label: Saturation, Data: 97%".
func ParseFileLine(line string) (Line, error) {
	keys := [4]string{"Patient ID", "Timestamp", "Label", "Data"}
	parts := strings.SplitN(strings.TrimSpace(line), ",", 4)
	if len(parts) != 4 {
		return Line{}, fmt.Errorf("ingest: %q: want 4 fields, got %d: %w", line, len(parts), ErrMalformedLine)
	}
	var vals [4]string
	for i, p := range parts {
		k, v, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(k) != keys[i] {
			return Line{}, fmt.Errorf("ingest: %q: field %d is not %q: %w", line, i, keys[i], ErrMalformedLine)
		}
		vals[i] = strings.TrimSpace(v)
	}
	return build(line, vals[0], vals[1], vals[2], vals[3])
}

func build(line, id, ts, label, data string) (Line, error) {
	pid, err := strconv.Atoi(id)
	if err != nil {
		return Line{}, fmt.Errorf("ingest: %q: patient id: %w", line, ErrMalformedLine)
	}
	t, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Line{}, fmt.Errorf("ingest: %q: timestamp: %w", line, ErrMalformedLine)
	}
	if label == "" {
		return Line{}, fmt.Errorf("ingest: %q: empty label: %w", line, ErrMalformedLine)
	}
	return Line{PatientID: pid, Timestamp: t, Label: label, Data: data}, nil
}

// Value parses Data as a number, accepting a trailing percent sign.
func (l Line) Value() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(l.Data, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("ingest: data %q: %w", l.Data, ErrMalformedLine)
	}
	return v, nil
}

// Store parses the value and hands the sample to rec.
func (l Line) Store(rec *Recorder) error {
	if _, err := types.ParseRecordType(l.Label); err != nil {
		metrics.RecordsRejected.WithLabelValues("unknown_label").Inc()
		return fmt.Errorf("ingest: label %q: %w", l.Label, err)
	}
	v, err := l.Value()
	if err != nil {
		metrics.RecordsRejected.WithLabelValues("malformed").Inc()
		return err
	}
	return rec.AddRecord(l.PatientID, v, l.Label, l.Timestamp)
}
