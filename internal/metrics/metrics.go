// Package metrics exposes Prometheus counters and gauges for the monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder tracks run outcomes for the /metrics endpoint.
type Recorder struct {
	runsTotal          *prometheus.CounterVec
	decisionsTotal     *prometheus.CounterVec
	fetchFailuresTotal *prometheus.CounterVec
	yearsFolded        prometheus.Counter
	yearsSkipped       prometheus.Counter
	currentYield       *prometheus.GaugeVec
	threshold          *prometheus.GaugeVec
	runDuration        prometheus.Histogram
}

// New creates a metrics recorder registered on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a metrics recorder registered on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divmon_runs_total",
				Help: "Total evaluation runs by outcome",
			},
			[]string{"outcome"},
		),
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divmon_decisions_total",
				Help: "Decisions emitted by the state machine, by kind",
			},
			[]string{"ticker", "kind"},
		),
		fetchFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divmon_fetch_failures_total",
				Help: "Collaborator fetch failures by class",
			},
			[]string{"class"},
		),
		yearsFolded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "divmon_backfill_years_folded_total",
				Help: "Historical years folded into baselines",
			},
		),
		yearsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "divmon_backfill_years_skipped_total",
				Help: "Historical years permanently skipped after fetch failure",
			},
		),
		currentYield: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "divmon_current_yield_percent",
				Help: "Most recently observed yield per instrument",
			},
			[]string{"ticker"},
		),
		threshold: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "divmon_threshold_percent",
				Help: "Current decision threshold per instrument",
			},
			[]string{"ticker"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "divmon_run_duration_seconds",
				Help:    "Duration of full evaluation runs",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordRun records a completed run with its outcome label.
func (r *Recorder) RecordRun(outcome string, seconds float64) {
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(seconds)
}

// RecordDecision records a state-machine decision.
func (r *Recorder) RecordDecision(ticker, kind string) {
	r.decisionsTotal.WithLabelValues(ticker, kind).Inc()
}

// RecordFetchFailure records a collaborator failure by error class.
func (r *Recorder) RecordFetchFailure(class string) {
	r.fetchFailuresTotal.WithLabelValues(class).Inc()
}

// RecordBackfill records folded and skipped year counts for one gap.
func (r *Recorder) RecordBackfill(folded, skipped int) {
	r.yearsFolded.Add(float64(folded))
	r.yearsSkipped.Add(float64(skipped))
}

// RecordObservation records the latest yield and threshold for an instrument.
func (r *Recorder) RecordObservation(ticker string, yield, threshold float64) {
	r.currentYield.WithLabelValues(ticker).Set(yield)
	r.threshold.WithLabelValues(ticker).Set(threshold)
}
