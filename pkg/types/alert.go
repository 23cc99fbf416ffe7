package types

import "strconv"

// Condition is the fixed catalog of findings the rule evaluators produce.
type Condition string

const (
	CriticalSystolic         Condition = "Critical Systolic Pressure Alert"
	CriticalDiastolic        Condition = "Critical Diastolic Pressure Alert"
	SystolicIncreasingTrend  Condition = "Systolic Pressure Increasing Trend Alert"
	SystolicDecreasingTrend  Condition = "Systolic Pressure Decreasing Trend Alert"
	DiastolicIncreasingTrend Condition = "Diastolic Pressure Increasing Trend Alert"
	DiastolicDecreasingTrend Condition = "Diastolic Pressure Decreasing Trend Alert"
	LowSaturation            Condition = "Low Saturation Alert"
	RapidOxygenDrop          Condition = "Rapid Oxygen Drop Alert"
	AbnormalHeartRate        Condition = "Abnormal Heart Rate Alert"
	IrregularBeat            Condition = "Irregular Beat Alert"
	HypotensiveHypoxemia     Condition = "Hypotensive Hypoxemia Alert"
)

// Alert is a single finding. Timestamp is the triggering sample's time, or
// the evaluation time for window-derived findings such as trends.
type Alert struct {
	PatientID string    `json:"patient_id"`
	Condition Condition `json:"condition"`
	Timestamp int64     `json:"timestamp"`
}

// NewAlert builds an Alert for the numeric patient id.
func NewAlert(patientID int, c Condition, ts int64) Alert {
	return Alert{PatientID: strconv.Itoa(patientID), Condition: c, Timestamp: ts}
}
