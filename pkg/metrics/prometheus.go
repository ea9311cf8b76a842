package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	probability *prometheus.GaugeVec
	exposure    *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgepulse_cycles_total",
				Help: "Total number of decision cycle triggers by outcome",
			},
			[]string{"symbol", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgepulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		probability: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgepulse_decision_probability",
				Help: "Up-move probability of the latest decision",
			},
			[]string{"symbol"},
		),
		exposure: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "edgepulse_decision_exposure",
				Help: "Signed target exposure of the latest decision",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCycle records one cycle trigger with its outcome.
func (r *Recorder) RecordCycle(symbol, outcome string) {
	r.cyclesTotal.WithLabelValues(symbol, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordDecision records the latest decision outputs for a symbol.
func (r *Recorder) RecordDecision(symbol string, probability, exposure float64) {
	r.probability.WithLabelValues(symbol).Set(probability)
	r.exposure.WithLabelValues(symbol).Set(exposure)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
