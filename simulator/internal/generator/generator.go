package generator

import (
	"math/rand"
	"sync"
)

// Reading is one generated sample. Label is a record type name, or "Alert"
// for the bedside alert button; Data is the rendered value.
type Reading struct {
	PatientID int
	Timestamp int64
	Label     string
	Data      string
}

// Generator produces samples for one patient per call. Implementations keep
// per-patient state and are safe for concurrent use.
type Generator interface {
	Name() string
	Generate(patientID int, now int64) []Reading
}

// source wraps a private *rand.Rand with the lock it needs; math/rand sources
// are not safe for concurrent use.
type source struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newSource(seed int64) *source {
	return &source{rnd: rand.New(rand.NewSource(seed))} //nolint:gosec // simulated data
}

// All returns one instance of every generator, each seeded from seed so two
// runs with the same seed emit the same sequence per generator.
func All(seed int64) []Generator {
	return []Generator{
		NewECG(seed),
		NewSaturation(seed + 1),
		NewPressure(seed + 2),
		NewAlert(seed + 3),
	}
}
