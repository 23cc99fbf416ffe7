package output

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardiowatch/cardiowatch/simulator/internal/generator"
)

// Output is a destination for generated readings.
type Output interface {
	Name() string
	Write(r generator.Reading) error
	Close() error
}

// Multi fans every reading out to a set of outputs. A failing output is
// logged and does not stop delivery to the others.
type Multi struct {
	outputs []Output
}

// NewMulti creates a Multi over outs.
func NewMulti(outs ...Output) *Multi {
	return &Multi{outputs: outs}
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int { return len(m.outputs) }

// Write sends r to every output and returns their errors joined.
func (m *Multi) Write(r generator.Reading) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(r); err != nil {
			slog.Warn("output: write failed", "output", o.Name(), "patient", r.PatientID, "label", r.Label, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every output.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}
