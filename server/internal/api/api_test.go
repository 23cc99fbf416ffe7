package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/alerts"
	"github.com/cardiowatch/cardiowatch/server/internal/api"
	"github.com/cardiowatch/cardiowatch/server/internal/ingest"
	"github.com/cardiowatch/cardiowatch/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

type fixture struct {
	st  *store.Memory
	d   *alerts.Dispatcher
	h   http.Handler
	now time.Time
	reg *prometheus.Registry
}

// downStore fails every operation the way an unreachable database does.
type downStore struct{}

func (downStore) Query(int, int64, int64) ([]types.MeasurementRecord, error) {
	return nil, fmt.Errorf("query: %w", types.ErrStorageUnavailable)
}

func (downStore) Patients() ([]int, error) {
	return nil, fmt.Errorf("patients: %w", types.ErrStorageUnavailable)
}

func (downStore) Append(types.MeasurementRecord) error {
	return fmt.Errorf("append: %w", types.ErrStorageUnavailable)
}

func newDownHandler() http.Handler {
	st := downStore{}
	return api.New(api.Deps{
		Store:    st,
		Recorder: ingest.NewRecorder(st, nil),
		Engine:   alerts.NewEngine(st),
		History:  alerts.NewDispatcher(0),
		Gatherer: prometheus.NewRegistry(),
	})
}

func newFixture(t *testing.T, recs ...types.MeasurementRecord) *fixture {
	t.Helper()
	f := &fixture{
		st:  store.NewMemory(),
		d:   alerts.NewDispatcher(0),
		now: time.Now(),
		reg: prometheus.NewRegistry(),
	}
	for _, r := range recs {
		if err := f.st.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	f.h = api.New(api.Deps{
		Store:    f.st,
		Recorder: ingest.NewRecorder(f.st, nil),
		Engine:   alerts.NewEngine(f.st, alerts.WithClock(func() time.Time { return f.now })),
		History:  f.d,
		Gatherer: f.reg,
	})
	return f
}

func rec(id int, typ types.RecordType, value float64, ts int64) types.MeasurementRecord {
	return types.MeasurementRecord{PatientID: id, Type: typ, Value: value, Timestamp: ts}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, h, http.MethodGet, path, "")
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, newFixture(t).h, "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "ok" || resp.PatientCount != 0 {
		t.Errorf("health: got %+v", resp)
	}
}

func TestHealth_Counts(t *testing.T) {
	f := newFixture(t, rec(1, types.ECG, 70, 1), rec(2, types.ECG, 70, 1), rec(2, types.ECG, 71, 2))
	f.d.Dispatch([]types.Alert{types.NewAlert(1, types.LowSaturation, 1)})

	var resp api.HealthResponse
	decode(t, get(t, f.h, "/api/v1/health"), &resp)
	if resp.PatientCount != 2 || resp.RecordCount != 3 || resp.AlertCount != 1 {
		t.Errorf("health: got %+v, want 2 patients, 3 records, 1 alert", resp)
	}
}

// --- /api/v1/patients -------------------------------------------------------

func TestListPatients(t *testing.T) {
	f := newFixture(t, rec(3, types.ECG, 70, 1), rec(1, types.ECG, 70, 1))
	var ids []int
	decode(t, get(t, f.h, "/api/v1/patients"), &ids)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("patients: got %v, want [1 3]", ids)
	}
}

func TestGetPatient_Vitals(t *testing.T) {
	now := time.Now()
	ms := now.UnixMilli()
	f := newFixture(t,
		rec(1, types.Saturation, 97, ms-2000),
		rec(1, types.Saturation, 88, ms-1000),
		rec(1, types.ECG, 72, ms-1000),
	)
	f.now = now

	rr := get(t, f.h, "/api/v1/patients/1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.PatientResponse
	decode(t, rr, &resp)
	if len(resp.Vitals) != 2 {
		t.Fatalf("vitals: got %d, want 2", len(resp.Vitals))
	}
	sat := resp.Vitals[0]
	if sat.Type != types.Saturation || sat.Value != 88 || sat.Level != "critical" {
		t.Errorf("saturation vital: got %+v", sat)
	}
	if resp.Vitals[1].Level != "ok" {
		t.Errorf("ECG vital: got %+v", resp.Vitals[1])
	}
}

func TestPatientID_NotInteger(t *testing.T) {
	rr := get(t, newFixture(t).h, "/api/v1/patients/abc/records")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

// --- records ----------------------------------------------------------------

func TestGetRecords_RangeAndTypeAscending(t *testing.T) {
	f := newFixture(t,
		rec(1, types.ECG, 3, 3000),
		rec(1, types.ECG, 1, 1000),
		rec(1, types.Saturation, 97, 1500),
		rec(1, types.ECG, 2, 2000),
	)
	var recs []types.MeasurementRecord
	decode(t, get(t, f.h, "/api/v1/patients/1/records?start=1000&end=3000&type=ECG"), &recs)
	if len(recs) != 2 {
		t.Fatalf("records: got %d, want 2", len(recs))
	}
	if recs[0].Timestamp != 1000 || recs[1].Timestamp != 2000 {
		t.Errorf("order: got %d, %d, want 1000, 2000", recs[0].Timestamp, recs[1].Timestamp)
	}
}

func TestGetRecords_BadParams(t *testing.T) {
	h := newFixture(t).h
	for _, path := range []string{
		"/api/v1/patients/1/records?start=x",
		"/api/v1/patients/1/records?end=y",
		"/api/v1/patients/1/records?type=Temperature",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", path, rr.Code)
		}
	}
}

func TestPostRecords_SingleAndArray(t *testing.T) {
	f := newFixture(t)

	rr := do(t, f.h, http.MethodPost, "/api/v1/patients/4/records",
		`{"value":97,"type":"Saturation","timestamp":1000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("single: status %d, want 201 (%s)", rr.Code, rr.Body.String())
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/patients/4/records",
		`[{"value":120,"type":"SystolicPressure","timestamp":2000},{"value":80,"type":"DiastolicPressure","timestamp":2000}]`)
	var resp api.IngestResponse
	decode(t, rr, &resp)
	if rr.Code != http.StatusCreated || resp.Accepted != 2 {
		t.Errorf("array: status %d, resp %+v", rr.Code, resp)
	}
	if f.st.Len(4) != 3 {
		t.Errorf("Len(4): got %d, want 3", f.st.Len(4))
	}
}

func TestPostRecords_InvalidType400(t *testing.T) {
	f := newFixture(t)
	rr := do(t, f.h, http.MethodPost, "/api/v1/patients/4/records", `{"value":1,"type":"Alert"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
	rr = do(t, f.h, http.MethodPost, "/api/v1/patients/4/records", `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: status %d, want 400", rr.Code)
	}
}

func TestGetRecords_TypeFilterNoMatchEmptyArray(t *testing.T) {
	f := newFixture(t, rec(1, types.ECG, 70, 1000))
	rr := get(t, f.h, "/api/v1/patients/1/records?type=Saturation")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body: got %s, want []", got)
	}
}

func TestStorageUnavailable503(t *testing.T) {
	h := newDownHandler()
	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/v1/patients", ""},
		{http.MethodGet, "/api/v1/patients/1/records", ""},
		{http.MethodPost, "/api/v1/patients/1/records", `{"value":70,"type":"ECG","timestamp":1}`},
		{http.MethodGet, "/api/v1/health", ""},
	} {
		if rr := do(t, h, tc.method, tc.path, tc.body); rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status %d, want 503", tc.method, tc.path, rr.Code)
		}
	}
}

func TestEvaluatePatient_StorageDownReportsError(t *testing.T) {
	rr := get(t, newDownHandler(), "/api/v1/patients/1/alerts")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rr.Code)
	}
	var resp api.EvaluationResponse
	decode(t, rr, &resp)
	if resp.Error == "" {
		t.Error("error: got empty, want storage failure")
	}
}

func TestPostRecords_WrongMethod(t *testing.T) {
	rr := do(t, newFixture(t).h, http.MethodDelete, "/api/v1/patients/4/records", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- alerts -----------------------------------------------------------------

func TestEvaluatePatient_OnDemandNotDispatched(t *testing.T) {
	now := time.Now()
	f := newFixture(t, rec(1, types.Saturation, 85, now.UnixMilli()))
	f.now = now

	rr := get(t, f.h, "/api/v1/patients/1/alerts")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.EvaluationResponse
	decode(t, rr, &resp)
	if len(resp.Alerts) != 1 || resp.Alerts[0].Condition != types.LowSaturation {
		t.Errorf("alerts: got %+v", resp.Alerts)
	}
	if f.d.Len() != 0 {
		t.Errorf("history: got %d events, want 0", f.d.Len())
	}
}

func TestEvaluatePatient_NoAlertsEmptyArray(t *testing.T) {
	rr := get(t, newFixture(t).h, "/api/v1/patients/1/alerts")
	var m map[string]interface{}
	decode(t, rr, &m)
	if a, ok := m["alerts"].([]interface{}); !ok || len(a) != 0 {
		t.Errorf("alerts: got %v, want []", m["alerts"])
	}
}

func TestListAlerts_LimitAndPatient(t *testing.T) {
	f := newFixture(t)
	f.d.Dispatch([]types.Alert{
		types.NewAlert(1, types.LowSaturation, 1),
		types.NewAlert(2, types.LowSaturation, 2),
		types.NewAlert(1, types.IrregularBeat, 3),
	})

	var events []alerts.Event
	decode(t, get(t, f.h, "/api/v1/alerts?limit=2"), &events)
	if len(events) != 2 || events[0].Timestamp != 3 {
		t.Errorf("limit=2: got %+v", events)
	}

	events = nil
	decode(t, get(t, f.h, "/api/v1/alerts?patient=2"), &events)
	if len(events) != 1 || events[0].PatientID != "2" {
		t.Errorf("patient=2: got %+v", events)
	}

	if rr := get(t, f.h, "/api/v1/alerts?limit=-1"); rr.Code != http.StatusBadRequest {
		t.Errorf("limit=-1: status %d, want 400", rr.Code)
	}
}

// --- stats and metrics ------------------------------------------------------

func TestStats(t *testing.T) {
	f := newFixture(t)
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "cardiowatch_test_total", Help: "h"})
	f.reg.MustRegister(c)
	c.Add(3)

	var resp api.StatsResponse
	decode(t, get(t, f.h, "/api/v1/stats"), &resp)
	if resp.Counters["test_total"] != 3 {
		t.Errorf("counters: got %v", resp.Counters)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rr := get(t, newFixture(t).h, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "cardiowatch_") {
		t.Error("/metrics: no cardiowatch series exposed")
	}
}
