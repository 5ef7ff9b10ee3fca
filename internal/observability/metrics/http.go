package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal         *prometheus.CounterVec
	queryDuration      *prometheus.HistogramVec
	evidenceChunks     *prometheus.HistogramVec
	noEvidenceTotal    *prometheus.CounterVec
	degradationsTotal  *prometheus.CounterVec
	failedPairsTotal   *prometheus.CounterVec
	rerankAppliedTotal *prometheus.CounterVec
	llmTokensTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total successful query pipeline runs.",
		},
		[]string{"service", "endpoint"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	evidenceChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "evidence_chunks",
			Help:      "Distribution of evidence chunks per successful run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "endpoint"},
	)
	noEvidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "no_evidence_total",
			Help:      "Total runs whose evidence set came back empty.",
		},
		[]string{"service", "endpoint"},
	)
	degradationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "degradations_total",
			Help:      "Total degraded pipeline stages by tag.",
		},
		[]string{"service", "stage"},
	)
	failedPairsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "failed_pairs_total",
			Help:      "Total failed (retriever, sub-query) retrieval calls.",
		},
		[]string{"service", "retriever"},
	)
	rerankAppliedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "pipeline",
			Name:      "rerank_applied_total",
			Help:      "Total runs where the cross-encoder reordered the head.",
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqa",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total tokens reported by the generation backend.",
		},
		[]string{"service", "endpoint", "model"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		evidenceChunks,
		noEvidenceTotal,
		degradationsTotal,
		failedPairsTotal,
		rerankAppliedTotal,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		queryTotal:         queryTotal,
		queryDuration:      queryDuration,
		evidenceChunks:     evidenceChunks,
		noEvidenceTotal:    noEvidenceTotal,
		degradationsTotal:  degradationsTotal,
		failedPairsTotal:   failedPairsTotal,
		rerankAppliedTotal: rerankAppliedTotal,
		llmTokensTotal:     llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordQueryObservation captures one finished pipeline run: count,
// duration and evidence distribution.
func (m *HTTPServerMetrics) RecordQueryObservation(service, endpoint string, evidenceCount int, duration time.Duration) {
	m.queryTotal.WithLabelValues(service, endpoint).Inc()
	m.evidenceChunks.WithLabelValues(service, endpoint).Observe(float64(evidenceCount))
	m.queryDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())

	if evidenceCount == 0 {
		m.noEvidenceTotal.WithLabelValues(service, endpoint).Inc()
	}
}

// RecordDegradations counts every degraded stage tag of a run.
func (m *HTTPServerMetrics) RecordDegradations(service string, stages []string) {
	for _, stage := range stages {
		if stage == "" {
			stage = "unknown"
		}
		m.degradationsTotal.WithLabelValues(service, stage).Inc()
	}
}

func (m *HTTPServerMetrics) RecordFailedPair(service, retriever string) {
	if retriever == "" {
		retriever = "unknown"
	}
	m.failedPairsTotal.WithLabelValues(service, retriever).Inc()
}

func (m *HTTPServerMetrics) RecordRerankApplied(service string) {
	m.rerankAppliedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint, model string, tokens int) {
	if tokens <= 0 {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.llmTokensTotal.WithLabelValues(service, endpoint, model).Add(float64(tokens))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
