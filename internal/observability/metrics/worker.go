package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/document-ledger/internal/core/domain"
)

// Verification results recorded by the worker.
const (
	ResultIntact      = "intact"
	ResultCompromised = "compromised"
	ResultMissing     = "missing"
	ResultError       = "error"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	verificationsTotal   *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
	verifyInFlight       prometheus.Gauge
	eventLag             *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	verificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_verifications_total",
			Help:      "Total chain verifications triggered by block events, by result.",
		},
		[]string{"service", "result"},
	)
	verificationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "verification_duration_seconds",
			Help:      "Chain verification duration in seconds by result.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
	verifyInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "verifications_in_flight",
			Help:      "Number of in-flight chain verifications.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between block append and verification start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(verificationsTotal, verificationDuration, verifyInFlight, eventLag)

	return &WorkerMetrics{
		registry:             registry,
		verificationsTotal:   verificationsTotal,
		verificationDuration: verificationDuration,
		verifyInFlight:       verifyInFlight,
		eventLag:             eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartVerification() {
	m.verifyInFlight.Inc()
}

func (m *WorkerMetrics) FinishVerification(service, result string, duration time.Duration) {
	m.verifyInFlight.Dec()
	m.verificationsTotal.WithLabelValues(service, result).Inc()
	m.verificationDuration.WithLabelValues(service, result).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}

// VerificationResult maps a verification outcome onto a metric label.
func VerificationResult(v domain.Verification, err error) string {
	switch {
	case err != nil:
		return ResultError
	case v.OK:
		return ResultIntact
	case domain.IsKind(v.Kind, domain.ErrChainNotFound):
		return ResultMissing
	default:
		return ResultCompromised
	}
}
