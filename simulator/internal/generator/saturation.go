package generator

import "strconv"

// Saturation emits blood oxygen saturation as a whole percentage, e.g. "97%".
// A patient starts between 95 and 100 and moves by at most one point per
// reading, staying within 90..100.
type Saturation struct {
	*source
	last map[int]int
}

// NewSaturation creates a Saturation generator seeded with seed.
func NewSaturation(seed int64) *Saturation {
	return &Saturation{source: newSource(seed), last: make(map[int]int)}
}

func (g *Saturation) Name() string { return "Saturation" }

func (g *Saturation) Generate(patientID int, now int64) []Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.last[patientID]
	if !ok {
		v = 95 + g.rnd.Intn(6)
	} else {
		v += g.rnd.Intn(3) - 1
	}
	v = min(max(v, 90), 100)
	g.last[patientID] = v

	return []Reading{{
		PatientID: patientID,
		Timestamp: now,
		Label:     "Saturation",
		Data:      strconv.Itoa(v) + "%",
	}}
}
