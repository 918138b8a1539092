package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	framesTotal       *prometheus.CounterVec
	phasesTotal       *prometheus.CounterVec
	attemptsTotal     *prometheus.CounterVec
	faultsTotal       *prometheus.CounterVec
	heightDiscrepancy prometheus.Histogram
	latency           *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		framesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinejump_frames_total",
				Help: "Total pose frames processed, by outcome",
			},
			[]string{"outcome"},
		),
		phasesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinejump_phase_transitions_total",
				Help: "Total phase transitions entered",
			},
			[]string{"phase"},
		),
		attemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinejump_attempts_total",
				Help: "Total jump attempts, by final status",
			},
			[]string{"status"},
		),
		faultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kinejump_faults_total",
				Help: "Total technique faults detected",
			},
			[]string{"fault"},
		),
		heightDiscrepancy: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kinejump_height_discrepancy_meters",
				Help:    "Absolute difference between flight-time and trajectory height estimates",
				Buckets: []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2},
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kinejump_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFrame records a processed frame by outcome (accepted, low_confidence, jitter).
func (r *Recorder) RecordFrame(outcome string) {
	r.framesTotal.WithLabelValues(outcome).Inc()
}

// RecordPhase records entry into a detection phase.
func (r *Recorder) RecordPhase(phase string) {
	r.phasesTotal.WithLabelValues(phase).Inc()
}

// RecordAttempt records a finished attempt by status.
func (r *Recorder) RecordAttempt(status string) {
	r.attemptsTotal.WithLabelValues(status).Inc()
}

// RecordFault records a detected technique fault.
func (r *Recorder) RecordFault(fault string) {
	r.faultsTotal.WithLabelValues(fault).Inc()
}

// RecordHeightDiscrepancy records the gap between the two height estimators.
func (r *Recorder) RecordHeightDiscrepancy(meters float64) {
	r.heightDiscrepancy.Observe(meters)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
