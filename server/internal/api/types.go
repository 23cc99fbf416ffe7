package api

import "github.com/cardiowatch/cardiowatch/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // "ok" | "degraded"
	PatientCount int    `json:"patient_count"`
	RecordCount  int    `json:"record_count"`
	AlertCount   int    `json:"alert_count"`
	Error        string `json:"error,omitempty"`
}

// StatsResponse is the payload for GET /api/v1/stats.
type StatsResponse struct {
	Counters    map[string]float64 `json:"counters"`
	GeneratedAt string             `json:"generated_at"` // RFC3339
}

// PatientResponse is the payload for GET /api/v1/patients/{id}.
type PatientResponse struct {
	PatientID int     `json:"patient_id"`
	Records   int     `json:"records"`
	Vitals    []Vital `json:"vitals"`
}

// RecordRequest is one record in POST /api/v1/patients/{id}/records.
// A zero Timestamp means "now".
type RecordRequest struct {
	Value     float64 `json:"value"`
	Type      string  `json:"type"`
	Timestamp int64   `json:"timestamp"`
}

// IngestResponse is the payload returned by POST /api/v1/patients/{id}/records.
type IngestResponse struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// EvaluationResponse is the payload for GET /api/v1/patients/{id}/alerts.
// Error is set when some rules could not run; Alerts still holds the
// findings of the rules that did.
type EvaluationResponse struct {
	PatientID   int           `json:"patient_id"`
	EvaluatedAt string        `json:"evaluated_at"` // RFC3339
	Alerts      []types.Alert `json:"alerts"`
	Error       string        `json:"error,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
