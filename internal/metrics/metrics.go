// Package metrics records the counters of each batch run on a private
// Prometheus registry. Batch processes do not serve /metrics; the registry
// is written as a node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dvloznov/budget-etl/internal/domain"
)

const namespace = "budget_etl"

// Recorder holds the run metrics.
type Recorder struct {
	registry *prometheus.Registry

	// Rows read from each input table
	RowsRead *prometheus.GaugeVec

	// Rows surviving cleaning, per table
	RowsClean *prometheus.GaugeVec

	// Quarantined rows by reason
	Quarantined *prometheus.GaugeVec

	DuplicatesRemoved  prometheus.Gauge
	KpiAreas           prometheus.Gauge
	AreasWithoutBudget prometheus.Gauge

	RunDuration      prometheus.Gauge
	LastRunTimestamp *prometheus.GaugeVec
	Runs             *prometheus.CounterVec

	StepDuration *prometheus.HistogramVec
}

// New creates a Recorder with every metric registered on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		RowsRead: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_read",
			Help:      "Rows read from each input table in the last run",
		}, []string{"table"}),

		RowsClean: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_clean",
			Help:      "Rows that passed cleaning in the last run",
		}, []string{"table"}),

		Quarantined: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_quarantined",
			Help:      "Rows quarantined in the last run by reason",
		}, []string{"reason"}),

		DuplicatesRemoved: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duplicates_removed",
			Help:      "Expense duplicates removed in the last run",
		}),

		KpiAreas: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kpi_areas",
			Help:      "Areas in the KPI table of the last run",
		}),

		AreasWithoutBudget: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "areas_without_budget",
			Help:      "KPI areas without an execution percentage in the last run",
		}),

		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),

		LastRunTimestamp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished, by status",
		}, []string{"status"}),

		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by final status",
		}, []string{"status"}),

		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of each pipeline step",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step"}),
	}
}

// Registry exposes the private registry, e.g. for promhttp.HandlerFor.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStep records the duration of one pipeline step.
func (r *Recorder) ObserveStep(step string, d time.Duration) {
	if r != nil {
		r.StepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

// RecordRun publishes the counters of a finished run.
func (r *Recorder) RecordRun(summary domain.RunSummary, status domain.RunStatus) {
	if r == nil {
		return
	}
	r.RowsRead.WithLabelValues(domain.TableExpenses).Set(float64(summary.RawExpenses))
	r.RowsRead.WithLabelValues(domain.TableBudgets).Set(float64(summary.RawBudgets))
	r.RowsClean.WithLabelValues(domain.TableExpenses).Set(float64(summary.CleanExpenses))
	r.RowsClean.WithLabelValues(domain.TableBudgets).Set(float64(summary.CleanBudgets))

	r.Quarantined.Reset()
	for reason, n := range summary.QuarantineByReason {
		r.Quarantined.WithLabelValues(reason).Set(float64(n))
	}

	r.DuplicatesRemoved.Set(float64(summary.DuplicatesRemoved))
	r.KpiAreas.Set(float64(summary.KpiAreas))
	r.AreasWithoutBudget.Set(float64(summary.AreasWithoutBudget))

	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		r.RunDuration.Set(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}
	if !summary.FinishedAt.IsZero() {
		r.LastRunTimestamp.WithLabelValues(string(status)).Set(float64(summary.FinishedAt.Unix()))
	}
	r.Runs.WithLabelValues(string(status)).Inc()
}

// WriteTextfile writes the registry in the text exposition format. The file
// is replaced atomically. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("WriteTextfile: %w", err)
	}
	return nil
}
