package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/alerts"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
)

// Evaluator produces alerts for one patient.
type Evaluator interface {
	Evaluate(patient *types.Patient) ([]types.Alert, error)
}

// Lister enumerates known patients.
type Lister interface {
	Patients() ([]int, error)
}

// Dispatcher receives evaluation results.
type Dispatcher interface {
	Dispatch(alerts []types.Alert) []alerts.Event
}

// Scheduler decides when patients are evaluated: all of them every
// interval, and optionally a single patient right after a new record.
type Scheduler struct {
	eval     Evaluator
	patients Lister
	dispatch Dispatcher
	interval time.Duration

	perPatient rate.Limit
	mu         sync.Mutex
	limiters   map[int]*rate.Limiter

	// async runs Trigger evaluations; tests replace it to run inline.
	async func(func())
}

// New creates a Scheduler. perPatient is the maximum Trigger evaluations per
// second for one patient.
func New(eval Evaluator, patients Lister, dispatch Dispatcher, interval time.Duration, perPatient float64) *Scheduler {
	return &Scheduler{
		eval:       eval,
		patients:   patients,
		dispatch:   dispatch,
		interval:   interval,
		perPatient: rate.Limit(perPatient),
		limiters:   make(map[int]*rate.Limiter),
		async:      func(f func()) { go f() },
	}
}

// Run evaluates every known patient each interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvaluateAll()
		}
	}
}

// EvaluateAll runs one pass over every patient in the store.
func (s *Scheduler) EvaluateAll() {
	ids, err := s.patients.Patients()
	if err != nil {
		metrics.EvaluationErrors.Inc()
		slog.Error("scheduler: list patients", "err", err)
		return
	}
	fired := 0
	for _, id := range ids {
		fired += s.evaluate(id, "interval")
	}
	slog.Debug("scheduler: pass complete", "patients", len(ids), "alerts", fired)
}

// Trigger evaluates patientID in the background unless the patient's
// limiter has no token, in which case the next interval pass covers it.
func (s *Scheduler) Trigger(patientID int) {
	if !s.limiter(patientID).Allow() {
		metrics.EvaluationsThrottled.Inc()
		return
	}
	s.async(func() { s.evaluate(patientID, "append") })
}

func (s *Scheduler) limiter(patientID int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[patientID]
	if !ok {
		l = rate.NewLimiter(s.perPatient, 1)
		s.limiters[patientID] = l
	}
	return l
}

func (s *Scheduler) evaluate(patientID int, trigger string) int {
	start := time.Now()
	found, err := s.eval.Evaluate(&types.Patient{ID: patientID})
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	metrics.Evaluations.WithLabelValues(trigger).Inc()

	if err != nil {
		metrics.EvaluationErrors.Inc()
		slog.Error("scheduler: evaluation failed",
			"patient", patientID,
			"trigger", trigger,
			"err", err,
		)
	}
	// Partial results from a failed evaluation are still delivered.
	s.dispatch.Dispatch(found)
	return len(found)
}
