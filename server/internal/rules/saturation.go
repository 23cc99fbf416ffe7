package rules

import "github.com/cardiowatch/cardiowatch/pkg/types"

const (
	lowSaturation = 92.0
	// rapidDropPct is the percentage fall between consecutive samples that
	// counts as rapid.
	rapidDropPct = 5.0
)

// LowSaturation fires once, at the most recent saturation sample below 92.
func LowSaturation(in Input) []types.Alert {
	for _, r := range descending(in.Window, types.Saturation) {
		if r.Value < lowSaturation {
			return []types.Alert{types.NewAlert(in.Patient.ID, types.LowSaturation, r.Timestamp)}
		}
	}
	return nil
}

// RapidOxygenDrop scans saturation oldest first and fires at the later
// sample of the first consecutive pair whose drop is at least 5 percent.
func RapidOxygenDrop(in Input) []types.Alert {
	recs := ascending(in.Window, types.Saturation)
	for i := 1; i < len(recs); i++ {
		prev, cur := recs[i-1].Value, recs[i].Value
		if prev <= 0 {
			continue
		}
		if 100*(prev-cur)/prev >= rapidDropPct {
			return []types.Alert{types.NewAlert(in.Patient.ID, types.RapidOxygenDrop, recs[i].Timestamp)}
		}
	}
	return nil
}
