package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/foreval/internal/contracts"
)

const namespace = "foreval"

// Recorder Prometheus 수집기 묶음. nil Recorder 의 메서드는 아무것도 하지 않음
type Recorder struct {
	runs        *prometheus.CounterVec
	entities    prometheus.Counter
	nullValues  *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	duration    prometheus.Histogram
	overallMean *prometheus.GaugeVec
	sinkWrites  *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_runs_total",
			Help:      "Evaluation runs by outcome.",
		}, []string{"outcome"}),
		entities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_scored_total",
			Help:      "Entities scored across all runs.",
		}),
		nullValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "null_metric_values_total",
			Help:      "Per-entity metric values that could not be computed.",
		}, []string{"metric"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Non-fatal diagnostics by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of a successful evaluation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		overallMean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overall_metric_mean",
			Help:      "Mean of each metric across entities in the latest report.",
		}, []string{"metric"}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_sink_writes_total",
			Help:      "Report writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}

	reg.MustRegister(r.runs, r.entities, r.nullValues, r.diagnostics, r.duration, r.overallMean, r.sinkWrites)
	return r
}

// ObserveReport records a successful run
func (r *Recorder) ObserveReport(report *contracts.EvaluationReport, elapsed time.Duration) {
	if r == nil || report == nil {
		return
	}

	r.runs.WithLabelValues("success").Inc()
	r.entities.Add(float64(report.EntityCount))
	r.duration.Observe(elapsed.Seconds())

	for _, result := range report.PerProductMetrics {
		for m, v := range result {
			if v == nil {
				r.nullValues.WithLabelValues(string(m)).Inc()
			}
		}
	}
	for _, d := range report.Diagnostics {
		r.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}

	r.overallMean.Reset()
	for m, s := range report.OverallMetrics {
		r.overallMean.WithLabelValues(string(m)).Set(s.Mean)
	}
}

// ObserveFailure records a run aborted by a fatal error
func (r *Recorder) ObserveFailure(outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
}

// ObserveSinkWrite records one sink write
func (r *Recorder) ObserveSinkWrite(sink string, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.sinkWrites.WithLabelValues(sink, outcome).Inc()
}
