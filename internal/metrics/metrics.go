// Package metrics registers the Prometheus metrics for the indexing and
// retrieval subsystem.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics owned by the subsystem. A single
// instance is created at startup so that tests can inject a fresh
// prometheus.Registry without polluting the default one.
type Metrics struct {
	// DocumentsIndexedTotal counts note and attachment upserts into the
	// vector index, partitioned by source ("note" or "attachment") and
	// outcome ("ok", "skipped", or "error").
	DocumentsIndexedTotal *prometheus.CounterVec

	// ChunksEmbeddedTotal counts individual chunks sent to the embedder.
	ChunksEmbeddedTotal prometheus.Counter

	// RetrievalsTotal counts retrieval queries, partitioned by outcome.
	RetrievalsTotal *prometheus.CounterVec

	// RetrievalDurationSeconds records the wall-clock duration of each
	// retrieval from query embedding to hydrated results.
	RetrievalDurationSeconds prometheus.Histogram

	// RebuildEventsTotal counts rebuild progress events by kind.
	RebuildEventsTotal *prometheus.CounterVec
}

// New registers all subsystem metrics against reg and returns the populated
// Metrics. promauto.With(reg) is used so that each call registers into the
// provided registry rather than the global default — this keeps unit tests
// hermetic.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DocumentsIndexedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blinko",
			Subsystem: "index",
			Name:      "documents_total",
			Help:      "Total number of documents indexed, partitioned by source and outcome.",
		}, []string{"source", "outcome"}),

		ChunksEmbeddedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "blinko",
			Subsystem: "index",
			Name:      "chunks_embedded_total",
			Help:      "Total number of text chunks sent to the embedding provider.",
		}),

		RetrievalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blinko",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total number of retrieval queries, partitioned by outcome.",
		}, []string{"outcome"}),

		RetrievalDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blinko",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of retrieval queries from embedding to hydration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		RebuildEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blinko",
			Subsystem: "rebuild",
			Name:      "events_total",
			Help:      "Total number of rebuild progress events, partitioned by kind.",
		}, []string{"kind"}),
	}
}

// Snapshot gathers g and flattens it into family name to value. Counters and
// gauges are summed across their label sets; histograms report their sample
// count. Families that never moved are omitted, so the CLI can log a short
// summary of what a run actually did.
func Snapshot(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}

	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		if total != 0 {
			out[mf.GetName()] = total
		}
	}
	return out, nil
}
