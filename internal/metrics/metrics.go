// Package metrics counts run activity with Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/bulkindex/internal/core"
)

const namespace = "bulkindex"

// Recorder implements core.Observer. Each Recorder owns its registry so
// tests and the CLI do not share global state.
type Recorder struct {
	registry *prometheus.Registry

	lines       prometheus.Counter
	diagnostics *prometheus.CounterVec
	records     prometheus.Counter
	runs        *prometheus.CounterVec
}

var _ core.Observer = (*Recorder)(nil)

// NewRecorder registers the run collectors. withRuntime adds the Go and
// process collectors, which only make sense for the long running service.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_processed_total",
			Help:      "Input lines read.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostics recorded, by kind code and severity.",
		}, []string{"code", "severity"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Association records written to bulk files.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs, by mode and outcome.",
		}, []string{"mode", "outcome"}),
	}
	r.registry.MustRegister(r.lines, r.diagnostics, r.records, r.runs)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

func (r *Recorder) LineProcessed() { r.lines.Inc() }

func (r *Recorder) DiagnosticRecorded(d core.Diagnostic) {
	r.diagnostics.WithLabelValues(d.Kind.Code, string(d.Kind.Severity)).Inc()
}

func (r *Recorder) RecordEmitted() { r.records.Inc() }

func (r *Recorder) RunFinished(mode core.Mode, success bool) {
	outcome := "failed"
	if success {
		outcome = "successful"
	}
	r.runs.WithLabelValues(string(mode), outcome).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the current values for the node exporter textfile
// collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
