package rules

import (
	"reflect"
	"testing"

	"github.com/cardiowatch/cardiowatch/pkg/types"
)

const testNow int64 = 1_700_000_000_000

var patient = types.Patient{ID: 1}

// series builds records of one type with the given values, one second apart,
// oldest first, ending at testNow.
func series(typ types.RecordType, values ...float64) []types.MeasurementRecord {
	out := make([]types.MeasurementRecord, len(values))
	start := testNow - int64(len(values)-1)*1000
	for i, v := range values {
		out[i] = types.MeasurementRecord{PatientID: patient.ID, Type: typ, Value: v, Timestamp: start + int64(i)*1000}
	}
	return out
}

func input(window ...[]types.MeasurementRecord) Input {
	var all []types.MeasurementRecord
	for _, w := range window {
		all = append(all, w...)
	}
	return Input{Patient: patient, Window: all, Now: testNow}
}

func conditions(alerts []types.Alert) []types.Condition {
	out := make([]types.Condition, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Condition)
	}
	return out
}

// --- critical pressure ------------------------------------------------------

func TestCriticalPressure_SystolicBoundaries(t *testing.T) {
	cases := []struct {
		value float64
		fires bool
	}{
		{181, true},
		{180, false},
		{90, false},
		{89.9, true},
		{120, false},
	}
	for _, tc := range cases {
		got := CriticalPressure(input(series(types.SystolicPressure, tc.value)))
		if fired := len(got) == 1; fired != tc.fires {
			t.Errorf("systolic %v: fired=%v, want %v", tc.value, fired, tc.fires)
		}
		if tc.fires && got[0].Condition != types.CriticalSystolic {
			t.Errorf("systolic %v: condition %q", tc.value, got[0].Condition)
		}
		if tc.fires && got[0].Timestamp != testNow {
			t.Errorf("systolic %v: timestamp %d, want record's %d", tc.value, got[0].Timestamp, testNow)
		}
	}
}

func TestCriticalPressure_DiastolicBoundaries(t *testing.T) {
	cases := []struct {
		value float64
		fires bool
	}{
		{121, true},
		{120, false},
		{60, false},
		{59, true},
	}
	for _, tc := range cases {
		got := CriticalPressure(input(series(types.DiastolicPressure, tc.value)))
		if fired := len(got) == 1; fired != tc.fires {
			t.Errorf("diastolic %v: fired=%v, want %v", tc.value, fired, tc.fires)
		}
		if tc.fires && got[0].Condition != types.CriticalDiastolic {
			t.Errorf("diastolic %v: condition %q", tc.value, got[0].Condition)
		}
	}
}

func TestCriticalPressure_EveryRecordFires(t *testing.T) {
	got := CriticalPressure(input(series(types.SystolicPressure, 200, 150, 70)))
	if len(got) != 2 {
		t.Fatalf("alerts: got %d, want 2", len(got))
	}
	// Most recent first: the 70 reading is newest.
	if got[0].Timestamp <= got[1].Timestamp {
		t.Errorf("order: got %d then %d, want most recent first", got[0].Timestamp, got[1].Timestamp)
	}
}

// --- pressure trend ---------------------------------------------------------

func TestPressureTrend_Increasing(t *testing.T) {
	got := PressureTrend(input(series(types.SystolicPressure, 100, 111, 122, 133)))
	want := []types.Condition{types.SystolicIncreasingTrend}
	if !reflect.DeepEqual(conditions(got), want) {
		t.Fatalf("conditions: got %v, want %v", conditions(got), want)
	}
	if got[0].Timestamp != testNow {
		t.Errorf("timestamp: got %d, want evaluation time %d", got[0].Timestamp, testNow)
	}
}

func TestPressureTrend_Decreasing(t *testing.T) {
	got := PressureTrend(input(series(types.DiastolicPressure, 100, 89, 78)))
	want := []types.Condition{types.DiastolicDecreasingTrend}
	if !reflect.DeepEqual(conditions(got), want) {
		t.Fatalf("conditions: got %v, want %v", conditions(got), want)
	}
}

func TestPressureTrend_GapOfExactlyTenDoesNotFire(t *testing.T) {
	got := PressureTrend(input(series(types.SystolicPressure, 100, 111, 121)))
	if len(got) != 0 {
		t.Errorf("alerts: got %v, want none", conditions(got))
	}
}

func TestPressureTrend_TwoRecordsNoCheck(t *testing.T) {
	got := PressureTrend(input(series(types.SystolicPressure, 100, 150)))
	if len(got) != 0 {
		t.Errorf("alerts: got %v, want none", conditions(got))
	}
}

func TestPressureTrend_CoFiresWithCritical(t *testing.T) {
	in := input(series(types.SystolicPressure, 160, 175, 190))
	if got := CriticalPressure(in); len(got) != 1 {
		t.Errorf("critical: got %d alerts, want 1", len(got))
	}
	if got := PressureTrend(in); len(got) != 1 {
		t.Errorf("trend: got %d alerts, want 1", len(got))
	}
}

// --- saturation -------------------------------------------------------------

func TestLowSaturation_FiresOnceAtMostRecent(t *testing.T) {
	recs := series(types.Saturation, 90, 91, 95)
	got := LowSaturation(input(recs))
	if len(got) != 1 {
		t.Fatalf("alerts: got %d, want 1", len(got))
	}
	if got[0].Timestamp != recs[1].Timestamp {
		t.Errorf("timestamp: got %d, want %d", got[0].Timestamp, recs[1].Timestamp)
	}
}

func TestLowSaturation_BoundaryNinetyTwo(t *testing.T) {
	if got := LowSaturation(input(series(types.Saturation, 92))); len(got) != 0 {
		t.Errorf("92%%: got %d alerts, want 0", len(got))
	}
}

func TestRapidOxygenDrop_FiresAtLaterSample(t *testing.T) {
	recs := series(types.Saturation, 98, 97, 92, 80)
	got := RapidOxygenDrop(input(recs))
	if len(got) != 1 {
		t.Fatalf("alerts: got %d, want 1", len(got))
	}
	// 97 -> 92 is the first pair at or above 5%.
	if got[0].Timestamp != recs[2].Timestamp {
		t.Errorf("timestamp: got %d, want %d", got[0].Timestamp, recs[2].Timestamp)
	}
}

func TestRapidOxygenDrop_ExactlyFivePercent(t *testing.T) {
	if got := RapidOxygenDrop(input(series(types.Saturation, 100, 95))); len(got) != 1 {
		t.Errorf("5%% drop: got %d alerts, want 1", len(got))
	}
}

func TestRapidOxygenDrop_SmallStepsDoNotFire(t *testing.T) {
	if got := RapidOxygenDrop(input(series(types.Saturation, 93, 92, 91))); len(got) != 0 {
		t.Errorf("~1%% drops: got %d alerts, want 0", len(got))
	}
}

func TestRapidOxygenDrop_OrderIndependentOfInput(t *testing.T) {
	recs := series(types.Saturation, 98, 90)
	reversed := []types.MeasurementRecord{recs[1], recs[0]}
	got := RapidOxygenDrop(input(reversed))
	if len(got) != 1 || got[0].Timestamp != recs[1].Timestamp {
		t.Errorf("reversed input: got %v", got)
	}
}

func TestRapidOxygenDrop_ZeroPreviousSkipped(t *testing.T) {
	if got := RapidOxygenDrop(input(series(types.Saturation, 0, 0))); len(got) != 0 {
		t.Errorf("zero values: got %d alerts, want 0", len(got))
	}
}

// --- ECG --------------------------------------------------------------------

func TestAbnormalHeartRate(t *testing.T) {
	cases := []struct {
		value float64
		fires bool
	}{
		{49, true},
		{50, false},
		{100, false},
		{101, true},
	}
	for _, tc := range cases {
		got := AbnormalHeartRate(input(series(types.ECG, tc.value)))
		if fired := len(got) == 1; fired != tc.fires {
			t.Errorf("ECG %v: fired=%v, want %v", tc.value, fired, tc.fires)
		}
	}
}

func TestAbnormalHeartRate_SingleFire(t *testing.T) {
	if got := AbnormalHeartRate(input(series(types.ECG, 30, 140, 150))); len(got) != 1 {
		t.Errorf("alerts: got %d, want 1", len(got))
	}
}

func TestIrregularBeat_SingleSampleNoEvaluation(t *testing.T) {
	if got := IrregularBeat(input(series(types.ECG, 70))); got != nil {
		t.Errorf("single sample: got %v, want nil", got)
	}
}

func TestIrregularBeat_RegularIntervals(t *testing.T) {
	if got := IrregularBeat(input(series(types.ECG, 70, 71, 72, 73))); len(got) != 0 {
		t.Errorf("regular: got %d alerts, want 0", len(got))
	}
}

func TestIrregularBeat_FiresOnOutlierInterval(t *testing.T) {
	recs := []types.MeasurementRecord{
		{Type: types.ECG, Value: 70, Timestamp: 0},
		{Type: types.ECG, Value: 70, Timestamp: 1000},
		{Type: types.ECG, Value: 70, Timestamp: 2000},
		{Type: types.ECG, Value: 70, Timestamp: 4000},
	}
	// mean = 4000/3 ≈ 1333; first interval 1000 deviates by 333 > 133.
	got := IrregularBeat(input(recs))
	if len(got) != 1 {
		t.Fatalf("alerts: got %d, want 1", len(got))
	}
	if got[0].Timestamp != 1000 {
		t.Errorf("timestamp: got %d, want 1000", got[0].Timestamp)
	}
}

// --- compound hypoxemia -----------------------------------------------------

func TestHypotensiveHypoxemia_BothPresent(t *testing.T) {
	got := HypotensiveHypoxemia(input(
		series(types.SystolicPressure, 85, 84),
		series(types.Saturation, 90, 89),
	))
	if len(got) != 1 {
		t.Fatalf("alerts: got %d, want exactly 1", len(got))
	}
	if got[0].Condition != types.HypotensiveHypoxemia || got[0].Timestamp != testNow {
		t.Errorf("alert: got %+v", got[0])
	}
}

func TestHypotensiveHypoxemia_EitherAloneDoesNotFire(t *testing.T) {
	if got := HypotensiveHypoxemia(input(series(types.SystolicPressure, 80))); len(got) != 0 {
		t.Errorf("pressure only: got %d alerts", len(got))
	}
	if got := HypotensiveHypoxemia(input(series(types.Saturation, 85))); len(got) != 0 {
		t.Errorf("saturation only: got %d alerts", len(got))
	}
	if got := HypotensiveHypoxemia(input(
		series(types.DiastolicPressure, 50),
		series(types.Saturation, 85),
	)); len(got) != 0 {
		t.Errorf("diastolic does not count: got %d alerts", len(got))
	}
}

// --- registry ---------------------------------------------------------------

func TestDefault_LookbacksAndDeterminism(t *testing.T) {
	reg := Default()
	if len(reg) != 7 {
		t.Fatalf("registry: got %d rules, want 7", len(reg))
	}
	in := input(
		series(types.SystolicPressure, 200, 85),
		series(types.Saturation, 99, 88),
		series(types.ECG, 120, 121),
	)
	first := runAll(reg, in)
	second := runAll(reg, in)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("evaluations differ:\n%v\n%v", first, second)
	}
}

func runAll(reg []Rule, in Input) []types.Alert {
	var out []types.Alert
	for _, r := range reg {
		out = append(out, r.Eval(in)...)
	}
	return out
}
