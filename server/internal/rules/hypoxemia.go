package rules

import "github.com/cardiowatch/cardiowatch/pkg/types"

// HypotensiveHypoxemia fires a single alert at the evaluation time when the
// window holds both a systolic reading below 90 and a saturation reading
// below 92. The two need not be paired in time within the window.
func HypotensiveHypoxemia(in Input) []types.Alert {
	var lowPressure, lowOxygen bool
	for _, r := range in.Window {
		switch r.Type {
		case types.SystolicPressure:
			lowPressure = lowPressure || r.Value < systolicLow
		case types.Saturation:
			lowOxygen = lowOxygen || r.Value < lowSaturation
		}
		if lowPressure && lowOxygen {
			return []types.Alert{types.NewAlert(in.Patient.ID, types.HypotensiveHypoxemia, in.Now)}
		}
	}
	return nil
}
