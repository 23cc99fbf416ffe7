package generator

import "math"

// Alert button parameters. A patient without an open alert presses the button
// with probability 1-e^-lambda per call; an open alert resolves with
// probability resolveP.
const (
	alertLambda   = 0.1
	alertResolveP = 0.9
)

// Alert simulates the bedside alert button. It emits "triggered" when a
// patient presses it and "resolved" when the alert is cleared, and nothing
// otherwise.
type Alert struct {
	*source
	open map[int]bool
}

// NewAlert creates an Alert generator seeded with seed.
func NewAlert(seed int64) *Alert {
	return &Alert{source: newSource(seed), open: make(map[int]bool)}
}

func (g *Alert) Name() string { return "Alert" }

func (g *Alert) Generate(patientID int, now int64) []Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	var data string
	if g.open[patientID] {
		if g.rnd.Float64() >= alertResolveP {
			return nil
		}
		g.open[patientID] = false
		data = "resolved"
	} else {
		if g.rnd.Float64() >= -math.Expm1(-alertLambda) {
			return nil
		}
		g.open[patientID] = true
		data = "triggered"
	}
	return []Reading{{PatientID: patientID, Timestamp: now, Label: "Alert", Data: data}}
}
