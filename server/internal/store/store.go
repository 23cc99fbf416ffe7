package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cardiowatch/cardiowatch/pkg/types"
)

// Reader is the read side of a record store, consumed by the alert engine.
type Reader interface {
	// Query returns the records of patientID with start <= timestamp < end.
	// Unknown patients and empty ranges yield an empty slice and a nil error.
	Query(patientID int, start, end int64) ([]types.MeasurementRecord, error)

	// Patients returns the ids that have at least one record, ascending.
	Patients() ([]int, error)
}

// Store is the full record store contract.
type Store interface {
	Reader

	// Append adds rec. Records with a type outside the vocabulary are
	// rejected with an error wrapping types.ErrInvalidInput.
	Append(rec types.MeasurementRecord) error

	// Prune removes records older than before and returns how many went.
	Prune(before int64) (int, error)

	Close() error
}

// timeline is one patient's partition. Its lock is independent of every
// other patient's.
type timeline struct {
	mu      sync.RWMutex
	records []types.MeasurementRecord
}

// Memory is a thread-safe in-memory Store partitioned by patient id.
// The top-level lock only guards the partition map; appends and queries for
// a patient hold that patient's lock for the duration of a slice append or
// copy.
type Memory struct {
	mu        sync.RWMutex
	timelines map[int]*timeline
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{timelines: make(map[int]*timeline)}
}

// Append stores rec in its patient's timeline.
func (m *Memory) Append(rec types.MeasurementRecord) error {
	if !rec.Type.Valid() {
		return fmt.Errorf("store: append record type %q: %w", rec.Type, types.ErrInvalidInput)
	}
	tl := m.timelineFor(rec.PatientID)
	tl.mu.Lock()
	tl.records = append(tl.records, rec)
	tl.mu.Unlock()
	return nil
}

// Query returns a copy of the matching records, in insertion order.
func (m *Memory) Query(patientID int, start, end int64) ([]types.MeasurementRecord, error) {
	if end <= start {
		return []types.MeasurementRecord{}, nil
	}
	m.mu.RLock()
	tl, ok := m.timelines[patientID]
	m.mu.RUnlock()
	if !ok {
		return []types.MeasurementRecord{}, nil
	}

	tl.mu.RLock()
	defer tl.mu.RUnlock()
	out := make([]types.MeasurementRecord, 0, len(tl.records))
	for _, r := range tl.records {
		if r.Timestamp >= start && r.Timestamp < end {
			out = append(out, r)
		}
	}
	return out, nil
}

// Patients returns all patient ids with at least one record.
func (m *Memory) Patients() ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int, 0, len(m.timelines))
	for id, tl := range m.timelines {
		tl.mu.RLock()
		n := len(tl.records)
		tl.mu.RUnlock()
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// Len returns the number of records held for patientID.
func (m *Memory) Len(patientID int) int {
	m.mu.RLock()
	tl, ok := m.timelines[patientID]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return len(tl.records)
}

// Count returns the total number of records across all patients.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, tl := range m.timelines {
		tl.mu.RLock()
		total += len(tl.records)
		tl.mu.RUnlock()
	}
	return total
}

// Prune drops every record with a timestamp before the cutoff.
func (m *Memory) Prune(before int64) (int, error) {
	m.mu.RLock()
	tls := make([]*timeline, 0, len(m.timelines))
	for _, tl := range m.timelines {
		tls = append(tls, tl)
	}
	m.mu.RUnlock()

	removed := 0
	for _, tl := range tls {
		tl.mu.Lock()
		kept := make([]types.MeasurementRecord, 0, len(tl.records))
		for _, r := range tl.records {
			if r.Timestamp >= before {
				kept = append(kept, r)
			}
		}
		removed += len(tl.records) - len(kept)
		tl.records = kept
		tl.mu.Unlock()
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

func (m *Memory) timelineFor(patientID int) *timeline {
	m.mu.RLock()
	tl, ok := m.timelines[patientID]
	m.mu.RUnlock()
	if ok {
		return tl
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tl, ok := m.timelines[patientID]; ok {
		return tl
	}
	tl = &timeline{}
	m.timelines[patientID] = tl
	return tl
}
