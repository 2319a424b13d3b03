package metrics

// This file contains the Prometheus instrumentation of the artifact
// writer and test runs.

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ocpdiag/ocpdiag/model"
)

const namespace = "ocpdiag"

// Metrics holds the collectors for one registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ArtifactsTotal     *prometheus.CounterVec
	ArtifactBytesTotal prometheus.Counter
	WriteErrorsTotal   prometheus.Counter
	WriteLatency       prometheus.Histogram
	ErrorsTotal        *prometheus.CounterVec
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// New creates a Metrics instance registered with a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a Metrics instance registered with reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ArtifactsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_total",
				Help:      "Total artifacts written by kind",
			},
			[]string{"kind"},
		),
		ArtifactBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_bytes_total",
				Help:      "Total bytes written to the durable record sink",
			},
		),
		WriteErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifact_write_errors_total",
				Help:      "Total failed artifact writes",
			},
		),
		WriteLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "artifact_write_latency_seconds",
				Help:      "Artifact write latency in seconds",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
			},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "error_artifacts_total",
				Help:      "Total error artifacts by symptom",
			},
			[]string{"symptom"},
		),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "test_runs_total",
				Help:      "Total finished test runs by status and result",
			},
			[]string{"status", "result"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "test_run_duration_seconds",
				Help:      "Test run duration in seconds",
				Buckets:   []float64{0.1, 1, 10, 60, 300, 1800, 3600},
			},
		),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveWrite records a successful artifact write.
func (m *Metrics) ObserveWrite(a *model.Artifact, n int, latency time.Duration) {
	if m == nil {
		return
	}
	m.ArtifactsTotal.WithLabelValues(string(a.Kind())).Inc()
	m.ArtifactBytesTotal.Add(float64(n))
	m.WriteLatency.Observe(latency.Seconds())

	var e *model.Error
	switch {
	case a.TestRunArtifact != nil && a.TestRunArtifact.Error != nil:
		e = a.TestRunArtifact.Error
	case a.TestStepArtifact != nil && a.TestStepArtifact.Error != nil:
		e = a.TestStepArtifact.Error
	}
	if e != nil {
		m.ErrorsTotal.WithLabelValues(e.Symptom).Inc()
	}
}

// ObserveWriteError records a failed artifact write.
func (m *Metrics) ObserveWriteError() {
	if m == nil {
		return
	}
	m.WriteErrorsTotal.Inc()
}

// ObserveRunEnd records the outcome of a finished test run.
func (m *Metrics) ObserveRunEnd(status model.TestStatus, result model.TestResult, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(status), string(result)).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// WriteTextfile writes all metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
