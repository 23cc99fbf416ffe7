package types

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors reported by the core. Callers match them with errors.Is.
var (
	// ErrInvalidInput marks a request the core refuses outright: a nil patient
	// reference or a record type outside the vocabulary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable marks a failure of the backing record store.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// RecordType is the closed vocabulary of measurement kinds.
type RecordType string

const (
	SystolicPressure  RecordType = "SystolicPressure"
	DiastolicPressure RecordType = "DiastolicPressure"
	Saturation        RecordType = "Saturation"
	ECG               RecordType = "ECG"
)

// RecordTypes lists every valid RecordType in a stable order.
var RecordTypes = []RecordType{SystolicPressure, DiastolicPressure, Saturation, ECG}

// Valid reports whether t belongs to the vocabulary.
func (t RecordType) Valid() bool {
	switch t {
	case SystolicPressure, DiastolicPressure, Saturation, ECG:
		return true
	}
	return false
}

// ParseRecordType converts s to a RecordType. Unknown names return an error
// wrapping ErrInvalidInput.
func ParseRecordType(s string) (RecordType, error) {
	t := RecordType(s)
	if !t.Valid() {
		return "", fmt.Errorf("record type %q: %w", s, ErrInvalidInput)
	}
	return t, nil
}

// MeasurementRecord is one timestamped sample for a patient. Timestamp is in
// milliseconds since the Unix epoch. Records are values and never mutated
// once appended to a store.
type MeasurementRecord struct {
	PatientID int        `json:"patient_id"`
	Value     float64    `json:"value"`
	Type      RecordType `json:"type"`
	Timestamp int64      `json:"timestamp"`
}

// Patient is the reference handed to the evaluation engine.
type Patient struct {
	ID int `json:"id"`
}

// SortAscending orders recs oldest first. Equal timestamps keep their
// relative order.
func SortAscending(recs []MeasurementRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp < recs[j].Timestamp })
}

// SortDescending orders recs most recent first. Equal timestamps keep their
// relative order.
func SortDescending(recs []MeasurementRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp > recs[j].Timestamp })
}

// FilterType returns a new slice holding only the records of type t.
func FilterType(recs []MeasurementRecord, t RecordType) []MeasurementRecord {
	var out []MeasurementRecord
	for _, r := range recs {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}
