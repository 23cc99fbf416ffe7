package rules

import (
	"time"

	"github.com/cardiowatch/cardiowatch/pkg/types"
)

// Lookback windows.
const (
	PressureLookback   = 24 * time.Hour
	SaturationLookback = 10 * time.Minute
	ECGLookback        = time.Hour
	HypoxemiaLookback  = 10 * time.Minute
)

// Input is what a Rule sees: the patient, the records inside its lookback
// window (any order, any type), and the evaluation time in milliseconds.
type Input struct {
	Patient types.Patient
	Window  []types.MeasurementRecord
	Now     int64
}

// Rule is one evaluator in the registry.
type Rule struct {
	Name     string
	Lookback time.Duration
	Eval     func(in Input) []types.Alert
}

// Default returns the full rule registry.
func Default() []Rule {
	return []Rule{
		{Name: "critical_pressure", Lookback: PressureLookback, Eval: CriticalPressure},
		{Name: "pressure_trend", Lookback: PressureLookback, Eval: PressureTrend},
		{Name: "low_saturation", Lookback: SaturationLookback, Eval: LowSaturation},
		{Name: "rapid_oxygen_drop", Lookback: SaturationLookback, Eval: RapidOxygenDrop},
		{Name: "abnormal_heart_rate", Lookback: ECGLookback, Eval: AbnormalHeartRate},
		{Name: "irregular_beat", Lookback: ECGLookback, Eval: IrregularBeat},
		{Name: "hypotensive_hypoxemia", Lookback: HypoxemiaLookback, Eval: HypotensiveHypoxemia},
	}
}

// descending returns the records of type t, most recent first.
func descending(window []types.MeasurementRecord, t types.RecordType) []types.MeasurementRecord {
	recs := types.FilterType(window, t)
	types.SortDescending(recs)
	return recs
}

// ascending returns the records of type t, oldest first.
func ascending(window []types.MeasurementRecord, t types.RecordType) []types.MeasurementRecord {
	recs := types.FilterType(window, t)
	types.SortAscending(recs)
	return recs
}
