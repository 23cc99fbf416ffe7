package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardiowatch/cardiowatch/pkg/types"
	"github.com/cardiowatch/cardiowatch/server/internal/alerts"
	"github.com/cardiowatch/cardiowatch/server/internal/metrics"
	"github.com/cardiowatch/cardiowatch/server/internal/rules"
	"github.com/cardiowatch/cardiowatch/server/internal/store"
)

const (
	defaultAlertLimit = 50
	maxBodyBytes      = 1 << 20
)

// Evaluator runs the rules for one patient.
type Evaluator interface {
	Evaluate(patient *types.Patient) ([]types.Alert, error)
}

// History is the dispatcher's event log.
type History interface {
	Recent(limit int) []alerts.Event
	ForPatient(patientID string) []alerts.Event
	Len() int
}

// Recorder ingests one record.
type Recorder interface {
	AddRecord(patientID int, value float64, recordType string, timestamp int64) error
}

// Deps are the collaborators the handler reads from and writes to.
type Deps struct {
	Store    store.Reader
	Recorder Recorder
	Engine   Evaluator
	History  History
	Gatherer prometheus.Gatherer

	// Stream, if set, is mounted at /ws/alerts.
	Stream http.Handler
}

// Handler serves the REST API, /metrics and the alert stream.
type Handler struct {
	deps Deps
	now  func() time.Time
	r    chi.Router
}

// New creates a Handler and registers all routes.
func New(deps Deps) *Handler {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	h := &Handler{deps: deps, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/stats", h.stats)
		r.Get("/alerts", h.listAlerts)
		r.Get("/patients", h.listPatients)
		r.Route("/patients/{id}", func(r chi.Router) {
			r.Get("/", h.getPatient)
			r.Get("/records", h.getRecords)
			r.Post("/records", h.postRecords)
			r.Get("/alerts", h.evaluatePatient)
		})
	})
	r.Handle("/metrics", metrics.Handler())
	if deps.Stream != nil {
		r.Handle("/ws/alerts", deps.Stream)
	}

	h.r = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.r.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	ids, err := h.deps.Store.Patients()
	if err != nil {
		jsonResp(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Error: err.Error()})
		return
	}
	resp := HealthResponse{Status: "ok", PatientCount: len(ids)}
	if c, ok := h.deps.Store.(interface{ Count() int }); ok {
		resp.RecordCount = c.Count()
	}
	if h.deps.History != nil {
		resp.AlertCount = h.deps.History.Len()
	}
	jsonResp(w, http.StatusOK, resp)
}

// stats returns GET /api/v1/stats, the cardiowatch collectors flattened.
func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	counters, err := metrics.Summary(h.deps.Gatherer)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, StatsResponse{
		Counters:    counters,
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	})
}

// listAlerts returns GET /api/v1/alerts?limit=&patient=.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	var events []alerts.Event
	if p := r.URL.Query().Get("patient"); p != "" {
		events = h.deps.History.ForPatient(p)
		if limit > 0 && len(events) > limit {
			events = events[:limit]
		}
	} else {
		events = h.deps.History.Recent(limit)
	}
	if events == nil {
		events = []alerts.Event{}
	}
	jsonResp(w, http.StatusOK, events)
}

// listPatients returns GET /api/v1/patients.
func (h *Handler) listPatients(w http.ResponseWriter, _ *http.Request) {
	ids, err := h.deps.Store.Patients()
	if err != nil {
		storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, ids)
}

// getPatient returns GET /api/v1/patients/{id}: the latest reading of each
// type within the pressure lookback, graded against the rule thresholds.
func (h *Handler) getPatient(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}
	now := h.now().UnixMilli()
	recs, err := h.deps.Store.Query(id, now-rules.PressureLookback.Milliseconds(), now+1)
	if err != nil {
		storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, PatientResponse{
		PatientID: id,
		Records:   len(recs),
		Vitals:    latestVitals(recs),
	})
}

// getRecords returns GET /api/v1/patients/{id}/records?start=&end=&type=,
// oldest first.
func (h *Handler) getRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := int64Param(q.Get("start"), 0)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	end, err := int64Param(q.Get("end"), math.MaxInt64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}

	recs, err := h.deps.Store.Query(id, start, end)
	if err != nil {
		storeErr(w, err)
		return
	}
	if t := q.Get("type"); t != "" {
		typ, err := types.ParseRecordType(t)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		recs = types.FilterType(recs, typ)
		if recs == nil {
			recs = []types.MeasurementRecord{}
		}
	}
	types.SortAscending(recs)
	jsonResp(w, http.StatusOK, recs)
}

// postRecords handles POST /api/v1/patients/{id}/records with a single
// record object or an array of them.
func (h *Handler) postRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}

	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var reqs []RecordRequest
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &reqs); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid record array")
			return
		}
	} else {
		var one RecordRequest
		if err := json.Unmarshal(raw, &one); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid record")
			return
		}
		reqs = []RecordRequest{one}
	}

	accepted := 0
	for i, req := range reqs {
		ts := req.Timestamp
		if ts == 0 {
			ts = h.now().UnixMilli()
		}
		if err := h.deps.Recorder.AddRecord(id, req.Value, req.Type, ts); err != nil {
			code := statusFor(err)
			jsonResp(w, code, IngestResponse{Accepted: accepted, Error: fmt.Sprintf("record %d: %v", i, err)})
			return
		}
		accepted++
	}
	jsonResp(w, http.StatusCreated, IngestResponse{Accepted: accepted})
}

// evaluatePatient returns GET /api/v1/patients/{id}/alerts: an on-demand
// evaluation whose results are not dispatched.
func (h *Handler) evaluatePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := patientID(w, r)
	if !ok {
		return
	}
	found, err := h.deps.Engine.Evaluate(&types.Patient{ID: id})
	metrics.Evaluations.WithLabelValues("api").Inc()

	resp := EvaluationResponse{
		PatientID:   id,
		EvaluatedAt: h.now().UTC().Format(time.RFC3339),
		Alerts:      found,
	}
	if resp.Alerts == nil {
		resp.Alerts = []types.Alert{}
	}
	code := http.StatusOK
	if err != nil {
		metrics.EvaluationErrors.Inc()
		resp.Error = err.Error()
		code = statusFor(err)
	}
	jsonResp(w, code, resp)
}

// --- helpers ----------------------------------------------------------------

func patientID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "patient id must be an integer")
		return 0, false
	}
	return id, true
}

func int64Param(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func storeErr(w http.ResponseWriter, err error) {
	jsonErr(w, statusFor(err), err.Error())
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
