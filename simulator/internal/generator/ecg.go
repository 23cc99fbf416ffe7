package generator

import (
	"math"
	"strconv"
)

// ECG emits a heart rate in beats per minute. Each patient has a resting
// rate between 60 and 90 that drifts slowly; a reading is the drifted rate
// plus Gaussian noise, with an occasional tachycardic or bradycardic episode.
type ECG struct {
	*source
	rest map[int]float64
}

const (
	ecgEpisodeP  = 0.02
	ecgNoiseSD   = 2.0
	ecgDriftStep = 0.5
)

// NewECG creates an ECG generator seeded with seed.
func NewECG(seed int64) *ECG {
	return &ECG{source: newSource(seed), rest: make(map[int]float64)}
}

func (g *ECG) Name() string { return "ECG" }

func (g *ECG) Generate(patientID int, now int64) []Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	rest, ok := g.rest[patientID]
	if !ok {
		rest = 60 + g.rnd.Float64()*30
	}
	rest = clamp(rest+(g.rnd.Float64()*2-1)*ecgDriftStep, 55, 95)
	g.rest[patientID] = rest

	bpm := rest + g.rnd.NormFloat64()*ecgNoiseSD
	if g.rnd.Float64() < ecgEpisodeP {
		if g.rnd.Intn(2) == 0 {
			bpm = 110 + g.rnd.Float64()*40
		} else {
			bpm = 35 + g.rnd.Float64()*10
		}
	}

	return []Reading{{
		PatientID: patientID,
		Timestamp: now,
		Label:     "ECG",
		Data:      strconv.FormatFloat(math.Round(bpm*10)/10, 'f', -1, 64),
	}}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
