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

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

const namespace = "ledger"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	blocksAppendedTotal     *prometheus.CounterVec
	chainReinitializedTotal *prometheus.CounterVec
	reconcileFilesTotal     *prometheus.CounterVec
	reconcileDuration       *prometheus.HistogramVec
	reconcileSkippedTotal   *prometheus.CounterVec
	retriesTotal            *prometheus.CounterVec
	breakerTransitions      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	blocksAppendedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blocks_appended_total",
			Help:      "Total blocks appended by action.",
		},
		[]string{"service", "action"},
	)
	chainReinitializedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "reinitialized_total",
			Help:      "Total appends that found no chain and started a new one.",
		},
		[]string{"service"},
	)
	reconcileFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "files_total",
			Help:      "Total reconciled files by verdict.",
		},
		[]string{"service", "verdict"},
	)
	reconcileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconciliation run duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)
	reconcileSkippedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "skipped_files_total",
			Help:      "Total files left out of reconciliation by reason.",
		},
		[]string{"service", "reason"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Total retried calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Total circuit breaker state transitions.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		blocksAppendedTotal,
		chainReinitializedTotal,
		reconcileFilesTotal,
		reconcileDuration,
		reconcileSkippedTotal,
		retriesTotal,
		breakerTransitions,
	)

	return &HTTPServerMetrics{
		registry:                registry,
		service:                 service,
		requestTotal:            requestTotal,
		requestDuration:         requestDuration,
		requestInFlight:         requestInFlight,
		blocksAppendedTotal:     blocksAppendedTotal,
		chainReinitializedTotal: chainReinitializedTotal,
		reconcileFilesTotal:     reconcileFilesTotal,
		reconcileDuration:       reconcileDuration,
		reconcileSkippedTotal:   reconcileSkippedTotal,
		retriesTotal:            retriesTotal,
		breakerTransitions:      breakerTransitions,
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

// normalizePath collapses document hashes so label cardinality stays bounded.
func normalizePath(path string) string {
	const prefix = "/v1/documents/"
	if !strings.HasPrefix(path, prefix) {
		return path
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		return prefix + "{hash}" + rest[i:]
	}
	return prefix + "{hash}"
}

// BlockAppended and ChainReinitialized satisfy ports.LedgerObserver.
func (m *HTTPServerMetrics) BlockAppended(action domain.Action) {
	m.blocksAppendedTotal.WithLabelValues(m.service, string(action)).Inc()
}

func (m *HTTPServerMetrics) ChainReinitialized(string) {
	m.chainReinitializedTotal.WithLabelValues(m.service).Inc()
}

func (m *HTTPServerMetrics) RecordReconciliation(report domain.ReconciliationReport, duration time.Duration) {
	for _, e := range report.Entries {
		m.reconcileFilesTotal.WithLabelValues(m.service, string(e.Verdict)).Inc()
	}
	if report.SkippedOversize > 0 {
		m.reconcileSkippedTotal.WithLabelValues(m.service, "oversize").Add(float64(report.SkippedOversize))
	}
	if len(report.Failures) > 0 {
		m.reconcileSkippedTotal.WithLabelValues(m.service, "failed").Add(float64(len(report.Failures)))
	}
	m.reconcileDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRetry(operation string, _ int, _ error) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *HTTPServerMetrics) RecordBreakerTransition(operation, _, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, to).Inc()
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
