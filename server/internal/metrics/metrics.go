package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Namespace prefixes every domain metric.
const Namespace = "cardiowatch"

var (
	// Ingest metrics
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_ingested_total",
			Help:      "Total number of measurement records appended to the store",
		},
		[]string{"type"},
	)

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_rejected_total",
			Help:      "Total number of records rejected before or during append",
		},
		[]string{"reason"}, // reason: invalid, malformed, storage
	)

	IngestReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_reconnects_total",
			Help:      "Total number of streaming ingest reconnect attempts",
		},
		[]string{"source"},
	)

	// Evaluation metrics
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "evaluations_total",
			Help:      "Total number of patient evaluations",
		},
		[]string{"trigger"}, // trigger: interval, append, api
	)

	EvaluationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "evaluation_errors_total",
			Help:      "Total number of evaluations that returned an error",
		},
	)

	EvaluationsThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "evaluations_throttled_total",
			Help:      "Total number of on-append evaluations skipped by the per-patient limiter",
		},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time taken to evaluate one patient",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// Alert metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_fired_total",
			Help:      "Total number of alerts dispatched",
		},
		[]string{"condition"},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Total number of alerts withheld from sinks by the cooldown",
		},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sink_errors_total",
			Help:      "Total number of failed alert deliveries",
		},
		[]string{"sink"},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "stream_clients",
			Help:      "Number of connected alert stream clients",
		},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so /patients/1 and /patients/2 share a series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Summary gathers every cardiowatch counter and gauge from g and returns
// their values summed across label sets, keyed by metric name without the
// namespace prefix.
func Summary(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	prefix := Namespace + "_"
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.TrimPrefix(name, prefix)
		for _, m := range mf.GetMetric() {
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] += m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] += m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
