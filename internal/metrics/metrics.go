// Package metrics exposes per-run pipeline counters in Prometheus format.
// The registry is written to a textfile for the node exporter's textfile
// collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/sparkify/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "sparkify"

// Collector holds the Prometheus metrics for one pipeline process.
type Collector struct {
	registry *prometheus.Registry

	RecordsRead      *prometheus.CounterVec
	SchemaViolations *prometheus.CounterVec
	RowsWritten      *prometheus.CounterVec
	JoinMisses       *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	LastRunStatus    *prometheus.GaugeVec
	LastRunTimestamp prometheus.Gauge
}

// NewCollector creates a collector on its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		RecordsRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "records_read_total",
				Help:      "Raw records read per record family.",
			},
			[]string{"family"},
		),
		SchemaViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "schema_violations_total",
				Help:      "Schema violations per record family and kind (dropped record, coerced field).",
			},
			[]string{"family", "kind"},
		),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rows_written_total",
				Help:      "Rows written per output table.",
			},
			[]string{"table"},
		),
		JoinMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "join_misses_total",
				Help:      "Song-play events dropped by the fact joins, per reason.",
			},
			[]string{"reason"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Stage wall-clock duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"stage", "status"},
		),
		LastRunStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_success",
				Help:      "1 if the last run in this environment completed, 0 otherwise.",
			},
			[]string{"environment"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished.",
			},
		),
	}

	c.registry.MustRegister(
		c.RecordsRead,
		c.SchemaViolations,
		c.RowsWritten,
		c.JoinMisses,
		c.StageDuration,
		c.LastRunStatus,
		c.LastRunTimestamp,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveIngest records the outcome of reading one record family.
func (c *Collector) ObserveIngest(family string, s core.IngestStats) {
	c.RecordsRead.WithLabelValues(family).Add(float64(s.Read))
	c.SchemaViolations.WithLabelValues(family, "dropped").Add(float64(s.Dropped))
	c.SchemaViolations.WithLabelValues(family, "coerced").Add(float64(s.Coerced))
}

// ObserveWrite records a finished table write.
func (c *Collector) ObserveWrite(res *core.WriteResult) {
	if res == nil {
		return
	}
	c.RowsWritten.WithLabelValues(res.Table).Add(float64(res.Rows))
}

// ObserveJoin records the fact join outcome.
func (c *Collector) ObserveJoin(s core.JoinStats) {
	c.JoinMisses.WithLabelValues("title").Add(float64(s.TitleMisses))
	c.JoinMisses.WithLabelValues("time").Add(float64(s.TimeMisses))
}

// ObserveStage records how long a stage took.
func (c *Collector) ObserveStage(stage core.Stage, status core.RunStatus, d time.Duration) {
	c.StageDuration.WithLabelValues(string(stage), string(status)).Observe(d.Seconds())
}

// ObserveRun records the final status of a run.
func (c *Collector) ObserveRun(run *core.Run) {
	if run == nil {
		return
	}
	ok := 0.0
	if run.Status == core.RunStatusCompleted {
		ok = 1
	}
	c.LastRunStatus.WithLabelValues(run.Environment).Set(ok)
	if run.CompletedAt != nil {
		c.LastRunTimestamp.Set(float64(run.CompletedAt.Unix()))
	}
}

// WriteTextfile atomically writes the registry in text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
