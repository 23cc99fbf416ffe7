package rules

import (
	"math"

	"github.com/cardiowatch/cardiowatch/pkg/types"
)

const (
	heartRateLow  = 50.0
	heartRateHigh = 100.0

	// beatDeviation is the allowed fraction of the mean interval.
	beatDeviation = 0.1
)

// AbnormalHeartRate fires once, at the most recent ECG sample below 50 or
// above 100.
func AbnormalHeartRate(in Input) []types.Alert {
	for _, r := range descending(in.Window, types.ECG) {
		if r.Value < heartRateLow || r.Value > heartRateHigh {
			return []types.Alert{types.NewAlert(in.Patient.ID, types.AbnormalHeartRate, r.Timestamp)}
		}
	}
	return nil
}

// IrregularBeat compares every inter-sample interval of the oldest-first ECG
// sequence against the mean interval and fires at the later sample of the
// first pair deviating by more than 10 percent of the mean. Fewer than two
// samples have no interval and produce nothing.
func IrregularBeat(in Input) []types.Alert {
	recs := ascending(in.Window, types.ECG)
	mean, ok := meanInterval(recs)
	if !ok {
		return nil
	}
	allowance := mean * beatDeviation
	for i := 1; i < len(recs); i++ {
		interval := float64(recs[i].Timestamp - recs[i-1].Timestamp)
		if math.Abs(interval-mean) > allowance {
			return []types.Alert{types.NewAlert(in.Patient.ID, types.IrregularBeat, recs[i].Timestamp)}
		}
	}
	return nil
}

// meanInterval returns the mean gap between consecutive samples of an
// ascending sequence. ok is false below two samples.
func meanInterval(recs []types.MeasurementRecord) (mean float64, ok bool) {
	if len(recs) < 2 {
		return 0, false
	}
	elapsed := recs[len(recs)-1].Timestamp - recs[0].Timestamp
	return float64(elapsed) / float64(len(recs)-1), true
}
