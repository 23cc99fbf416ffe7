package generator

import "strconv"

// Pressure emits a systolic and a diastolic reading per call. Values start
// near 110-130/70-85 and random-walk by up to two mmHg, bounded to
// 90..180 systolic and 60..120 diastolic.
type Pressure struct {
	*source
	last map[int][2]float64
}

// NewPressure creates a Pressure generator seeded with seed.
func NewPressure(seed int64) *Pressure {
	return &Pressure{source: newSource(seed), last: make(map[int][2]float64)}
}

func (g *Pressure) Name() string { return "Pressure" }

func (g *Pressure) Generate(patientID int, now int64) []Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	bp, ok := g.last[patientID]
	if !ok {
		bp = [2]float64{float64(110 + g.rnd.Intn(20)), float64(70 + g.rnd.Intn(15))}
	} else {
		bp[0] += float64(g.rnd.Intn(5) - 2)
		bp[1] += float64(g.rnd.Intn(5) - 2)
	}
	bp[0] = clamp(bp[0], 90, 180)
	bp[1] = clamp(bp[1], 60, 120)
	g.last[patientID] = bp

	return []Reading{
		{PatientID: patientID, Timestamp: now, Label: "SystolicPressure", Data: strconv.FormatFloat(bp[0], 'f', 1, 64)},
		{PatientID: patientID, Timestamp: now, Label: "DiastolicPressure", Data: strconv.FormatFloat(bp[1], 'f', 1, 64)},
	}
}
