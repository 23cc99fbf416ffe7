package alerts

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

const maxHistoryLen = 200

// Event is a dispatched alert.
type Event struct {
	ID string `json:"id"`
	types.Alert
	FiredAt time.Time `json:"fired_at"`
}

// Sink receives dispatched events. Send must not block for long; slow
// targets deliver asynchronously.
type Sink interface {
	Name() string
	Send(ev Event) error
}

// Dispatcher wraps engine findings into Events, keeps a bounded history and
// fans events out to sinks.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sinks    []Sink
	history  []Event
	lastSent map[string]time.Time // key: "patient:condition"
}

// NewDispatcher creates a Dispatcher. A zero cooldown delivers every event.
func NewDispatcher(cooldown time.Duration, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		cooldown: cooldown,
		now:      time.Now,
		sinks:    sinks,
		lastSent: make(map[string]time.Time),
	}
}

// AddSink registers s for subsequent dispatches.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

// Dispatch records every alert and delivers it to the sinks unless it falls
// inside the cooldown for its patient and condition. The alerts slice is
// not modified.
func (d *Dispatcher) Dispatch(alerts []types.Alert) []Event {
	if len(alerts) == 0 {
		return nil
	}

	now := d.now()
	events := make([]Event, 0, len(alerts))
	deliver := make([]Event, 0, len(alerts))

	d.mu.Lock()
	for _, a := range alerts {
		ev := Event{ID: uuid.NewString(), Alert: a, FiredAt: now}
		events = append(events, ev)
		d.history = append(d.history, ev)

		key := a.PatientID + ":" + string(a.Condition)
		if d.cooldown > 0 {
			if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cooldown {
				metrics.AlertsSuppressed.Inc()
				continue
			}
		}
		d.lastSent[key] = now
		deliver = append(deliver, ev)
	}
	if len(d.history) > maxHistoryLen {
		d.history = append([]Event(nil), d.history[len(d.history)-maxHistoryLen:]...)
	}
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.Unlock()

	for _, ev := range deliver {
		metrics.AlertsFired.WithLabelValues(string(ev.Condition)).Inc()
		for _, s := range sinks {
			if err := s.Send(ev); err != nil {
				metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
				slog.Error("alerts: sink delivery failed",
					"sink", s.Name(),
					"patient", ev.PatientID,
					"condition", ev.Condition,
					"err", err,
				)
			}
		}
	}
	return events
}

// Recent returns up to limit events, newest first. A limit <= 0 returns the
// whole history.
func (d *Dispatcher) Recent(limit int) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, d.history[i])
	}
	return out
}

// ForPatient returns the retained events for patientID, newest first.
func (d *Dispatcher) ForPatient(patientID string) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Event
	for i := len(d.history) - 1; i >= 0; i-- {
		if d.history[i].PatientID == patientID {
			out = append(out, d.history[i])
		}
	}
	return out
}

// Len returns the number of retained events.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history)
}
