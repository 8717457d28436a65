// Package metrics counts what each stage did during one CLI invocation. The
// registry is written out in node-exporter textfile format when the command
// exits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zcpi-labs/zcpi/pkg/outcome"
)

type Recorder struct {
	registry *prometheus.Registry

	rows     *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	batches  *prometheus.CounterVec
	duration *prometheus.GaugeVec
	lastRun  *prometheus.GaugeVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zcpi",
			Subsystem: "stage",
			Name:      "rows_total",
			Help:      "Rows written by a pipeline stage.",
		}, []string{"stage"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zcpi",
			Subsystem: "stage",
			Name:      "outcomes_total",
			Help:      "Stage completions broken down by outcome.",
		}, []string{"stage", "outcome"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zcpi",
			Subsystem: "upload",
			Name:      "batches_total",
			Help:      "Upload batches broken down by result.",
		}, []string{"backend", "result"}),
		duration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "zcpi",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Wall time of the last stage run.",
		}, []string{"stage"}),
		lastRun: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "zcpi",
			Subsystem: "stage",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the stage last finished.",
		}, []string{"stage"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe records a finished stage. A nil Recorder is a no-op.
func (r *Recorder) Observe(res outcome.Result, started time.Time) {
	if r == nil {
		return
	}
	kind := string(res.Kind)
	if kind == "" {
		kind = "error"
	}
	r.outcomes.WithLabelValues(res.Stage, kind).Inc()
	if res.OK() {
		r.rows.WithLabelValues(res.Stage).Add(float64(res.Rows))
	}
	r.duration.WithLabelValues(res.Stage).Set(time.Since(started).Seconds())
	r.lastRun.WithLabelValues(res.Stage).SetToCurrentTime()
}

func (r *Recorder) Batch(backend string, ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.batches.WithLabelValues(backend, result).Inc()
}

// WriteTextfile writes the registry to path. Empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
