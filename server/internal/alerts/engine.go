package alerts

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/rules"
	"github.com/cardiowatch/cardiowatch/server/internal/store"
)

// Engine evaluates the rule registry for one patient at a time against a
// record store. It keeps no state between calls and is safe for concurrent
// use; delivery and history live in Dispatcher.
type Engine struct {
	store store.Reader
	rules []rules.Rule
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default registry.
func WithRules(r []rules.Rule) Option {
	return func(e *Engine) { e.rules = r }
}

// WithClock sets the clock used to derive the evaluation time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over st using rules.Default unless WithRules is given.
func NewEngine(st store.Reader, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		rules: rules.Default(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rules returns the registry in evaluation order.
func (e *Engine) Rules() []rules.Rule {
	return e.rules
}

// Evaluate runs every rule for patient and returns the concatenated alerts
// in registry order.
//
// Each rule sees the records in [now-lookback, now]. A rule whose window
// cannot be read, or which panics, is skipped; the remaining rules still run
// and their alerts are returned alongside the joined failures.
func (e *Engine) Evaluate(patient *types.Patient) ([]types.Alert, error) {
	if patient == nil {
		return nil, fmt.Errorf("alerts: evaluate nil patient: %w", types.ErrInvalidInput)
	}

	now := e.now().UnixMilli()
	windows := make(map[time.Duration][]types.MeasurementRecord)
	failed := make(map[time.Duration]error)

	var (
		out  []types.Alert
		errs []error
	)
	for _, r := range e.rules {
		window, ok := windows[r.Lookback]
		if !ok {
			if err, seen := failed[r.Lookback]; seen {
				errs = append(errs, fmt.Errorf("rule %s: %w", r.Name, err))
				continue
			}
			recs, err := e.store.Query(patient.ID, now-r.Lookback.Milliseconds(), now+1)
			if err != nil {
				failed[r.Lookback] = err
				errs = append(errs, fmt.Errorf("rule %s: window: %w", r.Name, err))
				continue
			}
			windows[r.Lookback] = recs
			window = recs
		}

		found, err := run(r, rules.Input{Patient: *patient, Window: window, Now: now})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, found...)
	}

	if len(errs) > 0 {
		slog.Warn("alerts: evaluation incomplete",
			"patient", patient.ID,
			"failed_rules", len(errs),
			"alerts", len(out),
		)
	}
	return out, errors.Join(errs...)
}

// run calls r.Eval, converting a panic into an error.
func run(r rules.Rule, in rules.Input) (found []types.Alert, err error) {
	defer func() {
		if p := recover(); p != nil {
			found = nil
			err = fmt.Errorf("rule %s: panic: %v", r.Name, p)
		}
	}()
	return r.Eval(in), nil
}
