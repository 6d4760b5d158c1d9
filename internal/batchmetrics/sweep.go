package batchmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	"go.uber.org/zap"
)

// SweepRecorder publishes the outcome of each document integrity sweep. A
// nil recorder drops everything.
type SweepRecorder struct {
	registry *prometheus.Registry
	pusher   Pusher
	log      *zap.Logger

	checked         prometheus.Gauge
	dangling        prometheus.Gauge
	orphansRemoved  prometheus.Gauge
	orphansRetained prometheus.Gauge
	duration        prometheus.Gauge
	lastSuccess     prometheus.Gauge
	failures        prometheus.Counter
}

func NewSweepRecorder(pusher Pusher, log *zap.Logger) *SweepRecorder {
	if pusher == nil {
		return nil
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "schoolbill",
			Subsystem: "document_sweep",
			Name:      name,
			Help:      help,
		})
	}
	r := &SweepRecorder{
		registry:        prometheus.NewRegistry(),
		pusher:          pusher,
		log:             log.Named("batchmetrics.sweep"),
		checked:         gauge("checked_documents", "Documents checked by the last sweep."),
		dangling:        gauge("dangling_documents", "Documents whose blob was missing in the last sweep."),
		orphansRemoved:  gauge("orphans_removed", "Unreferenced blobs removed by the last sweep."),
		orphansRetained: gauge("orphans_retained", "Unreferenced blobs kept because they were inside the grace period."),
		duration:        gauge("duration_seconds", "Wall time of the last sweep."),
		lastSuccess:     gauge("last_success_timestamp_seconds", "Unix time the last successful sweep finished."),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolbill",
			Subsystem: "document_sweep",
			Name:      "failures_total",
			Help:      "Sweeps that ended in an error since the process started.",
		}),
	}
	r.registry.MustRegister(r.checked, r.dangling, r.orphansRemoved, r.orphansRetained, r.duration, r.lastSuccess, r.failures)
	return r
}

func (r *SweepRecorder) RecordSweep(ctx context.Context, report documentdomain.IntegrityReport) {
	if r == nil {
		return
	}
	r.checked.Set(float64(report.CheckedDocuments))
	r.dangling.Set(float64(len(report.DanglingDocuments)))
	r.orphansRemoved.Set(float64(len(report.OrphansRemoved)))
	r.orphansRetained.Set(float64(report.OrphansRetained))
	r.duration.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	r.lastSuccess.Set(float64(report.FinishedAt.Unix()))
	r.push(ctx)
}

func (r *SweepRecorder) RecordFailure(ctx context.Context) {
	if r == nil {
		return
	}
	r.failures.Inc()
	r.push(ctx)
}

func (r *SweepRecorder) push(ctx context.Context) {
	if err := r.pusher.Push(ctx, r.registry); err != nil {
		r.log.Warn("push sweep metrics failed", zap.Error(err))
	}
}
