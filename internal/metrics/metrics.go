// Package metrics wires the detector's counters/gauges through
// prometheus/client_golang, grounded on chidi150c-coinbase's
// Register-once-per-process pattern — adapted here from a handful of
// trading counters to the named series the Block Scheduler must emit
// (spec section 4.5 "Emit metrics").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry owns every metric this detector exports. Construct with New and
// register once with a prometheus.Registerer at process start.
type Registry struct {
	IngestedUpdates    prometheus.Counter
	EdgesActive        prometheus.Gauge
	RunsTotal          prometheus.Counter
	OpportunitiesTotal prometheus.Counter
	DetectionMs        prometheus.Histogram
	DroppedByGasTotal  prometheus.Counter
	DedupSuppressed    prometheus.Counter
	OutputDropped      prometheus.Counter
}

// New builds the metric set, namespaced under "arbcore".
func New() *Registry {
	return &Registry{
		IngestedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore", Name: "ingested_updates_total",
			Help: "Total MarketUpdate messages applied to the graph.",
		}),
		EdgesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arbcore", Name: "edges_active",
			Help: "Number of directed edges currently held by the graph.",
		}),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore", Name: "runs_total",
			Help: "Total Cycle Engine detection runs (one per BlockEnd).",
		}),
		OpportunitiesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore", Name: "opportunities_total",
			Help: "Total opportunities emitted downstream.",
		}),
		DetectionMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arbcore", Name: "detection_ms",
			Help:    "Wall-clock duration of one detection run, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		DroppedByGasTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore", Name: "dropped_by_gas_total",
			Help: "Candidates dropped by the Gas & Net-Profit Evaluator.",
		}),
		DedupSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore", Name: "dedup_suppressed_total",
			Help: "Opportunities suppressed by the sliding dedup window.",
		}),
		OutputDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore", Name: "output_dropped_total",
			Help: "Opportunities dropped because the downstream channel was full.",
		}),
	}
}

// MustRegister registers every metric with reg, panicking on a duplicate
// registration (mirrors prometheus' own MustRegister convention).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.IngestedUpdates,
		r.EdgesActive,
		r.RunsTotal,
		r.OpportunitiesTotal,
		r.DetectionMs,
		r.DroppedByGasTotal,
		r.DedupSuppressed,
		r.OutputDropped,
	)
}

// Snapshot is a point-in-time read of counters for CLI/debug reporting.
// cmd/detector does not print it; -dump-graph reports graph edges only.
type Snapshot struct {
	IngestedUpdates    float64
	EdgesActive        float64
	RunsTotal          float64
	OpportunitiesTotal float64
	DroppedByGasTotal  float64
	DedupSuppressed    float64
	OutputDropped      float64
}

// Snapshot reads every counter/gauge's current value via the prometheus
// dto, avoiding a second source of truth for reporting.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		IngestedUpdates:    readCounter(r.IngestedUpdates),
		EdgesActive:        readGauge(r.EdgesActive),
		RunsTotal:          readCounter(r.RunsTotal),
		OpportunitiesTotal: readCounter(r.OpportunitiesTotal),
		DroppedByGasTotal:  readCounter(r.DroppedByGasTotal),
		DedupSuppressed:    readCounter(r.DedupSuppressed),
		OutputDropped:      readCounter(r.OutputDropped),
	}
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func readGauge(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
