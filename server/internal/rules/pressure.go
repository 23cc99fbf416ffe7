package rules

import "github.com/cardiowatch/cardiowatch/pkg/types"

const (
	systolicHigh  = 180.0
	systolicLow   = 90.0
	diastolicHigh = 120.0
	diastolicLow  = 60.0

	// trendMinSamples is the fewest records a trend check runs on.
	trendMinSamples = 3
	// trendStep is the strict minimum change between consecutive samples.
	trendStep = 10.0
)

type pressureSignal struct {
	typ        types.RecordType
	high, low  float64
	critical   types.Condition
	increasing types.Condition
	decreasing types.Condition
}

var pressureSignals = []pressureSignal{
	{
		typ:        types.SystolicPressure,
		high:       systolicHigh,
		low:        systolicLow,
		critical:   types.CriticalSystolic,
		increasing: types.SystolicIncreasingTrend,
		decreasing: types.SystolicDecreasingTrend,
	},
	{
		typ:        types.DiastolicPressure,
		high:       diastolicHigh,
		low:        diastolicLow,
		critical:   types.CriticalDiastolic,
		increasing: types.DiastolicIncreasingTrend,
		decreasing: types.DiastolicDecreasingTrend,
	},
}

// CriticalPressure fires once per pressure record outside its safe band, in
// most-recent-first order. Systolic fires above 180 or below 90; diastolic
// above 120 or below 60.
func CriticalPressure(in Input) []types.Alert {
	var out []types.Alert
	for _, sig := range pressureSignals {
		for _, r := range descending(in.Window, sig.typ) {
			if r.Value > sig.high || r.Value < sig.low {
				out = append(out, types.NewAlert(in.Patient.ID, sig.critical, r.Timestamp))
			}
		}
	}
	return out
}

// PressureTrend fires at most one trend alert per pressure type, stamped with
// the evaluation time, when every consecutive pair of the most-recent-first
// sequence moves more than 10 in the same direction.
func PressureTrend(in Input) []types.Alert {
	var out []types.Alert
	for _, sig := range pressureSignals {
		recs := descending(in.Window, sig.typ)
		if len(recs) < trendMinSamples {
			continue
		}
		switch {
		case hasTrend(recs, true):
			out = append(out, types.NewAlert(in.Patient.ID, sig.increasing, in.Now))
		case hasTrend(recs, false):
			out = append(out, types.NewAlert(in.Patient.ID, sig.decreasing, in.Now))
		}
	}
	return out
}

// hasTrend reports whether recs, most recent first, rise (or fall) by more
// than trendStep between every consecutive pair.
func hasTrend(recs []types.MeasurementRecord, increasing bool) bool {
	for i := 0; i < len(recs)-1; i++ {
		current, next := recs[i].Value, recs[i+1].Value
		if increasing && current-next <= trendStep {
			return false
		}
		if !increasing && next-current <= trendStep {
			return false
		}
	}
	return true
}
