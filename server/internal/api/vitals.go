package api

import (
	"fmt"

	"github.com/cardiowatch/cardiowatch/pkg/types"
)

// Vital is the latest reading of one record type with a grade against the
// alert thresholds.
type Vital struct {
	Type      types.RecordType `json:"type"`
	Value     float64          `json:"value"`
	Timestamp int64            `json:"timestamp"`
	// Level is "ok" | "critical".
	Level string `json:"level"`
	// Detail explains a non-ok level.
	Detail string `json:"detail,omitempty"`
}

// latestVitals returns one Vital per record type present in recs, in
// types.RecordTypes order.
func latestVitals(recs []types.MeasurementRecord) []Vital {
	latest := make(map[types.RecordType]types.MeasurementRecord)
	for _, r := range recs {
		if cur, ok := latest[r.Type]; !ok || r.Timestamp >= cur.Timestamp {
			latest[r.Type] = r
		}
	}

	out := make([]Vital, 0, len(latest))
	for _, t := range types.RecordTypes {
		r, ok := latest[t]
		if !ok {
			continue
		}
		v := Vital{Type: t, Value: r.Value, Timestamp: r.Timestamp, Level: "ok"}
		if detail := grade(t, r.Value); detail != "" {
			v.Level = "critical"
			v.Detail = detail
		}
		out = append(out, v)
	}
	return out
}

// grade returns a description when value crosses an alert threshold for t.
// The bounds match the single-reading rules.
func grade(t types.RecordType, value float64) string {
	switch t {
	case types.SystolicPressure:
		if value > 180 || value < 90 {
			return fmt.Sprintf("systolic %.0f mmHg is outside 90-180", value)
		}
	case types.DiastolicPressure:
		if value > 120 || value < 60 {
			return fmt.Sprintf("diastolic %.0f mmHg is outside 60-120", value)
		}
	case types.Saturation:
		if value < 92 {
			return fmt.Sprintf("saturation %.0f%% is below 92%%", value)
		}
	case types.ECG:
		if value < 50 || value > 100 {
			return fmt.Sprintf("heart rate %.0f bpm is outside 50-100", value)
		}
	}
	return ""
}
