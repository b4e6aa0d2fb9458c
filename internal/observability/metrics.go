// Package observability provides Prometheus metrics for the swap pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "evmswaps"

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	SwapsEmitted       *prometheus.CounterVec
	PoolsDiscovered    *prometheus.CounterVec
	TokensEnriched     prometheus.Counter
	EnrichmentFailures prometheus.Counter
	LogsDropped        *prometheus.CounterVec
	BatchDuration      prometheus.Histogram
	CurrentBlock       prometheus.Gauge
	HeadBlock          prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg yields unregistered
// collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SwapsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "swaps_emitted_total",
			Help:      "Canonical swaps handed to the sink",
		}, []string{"protocol"}),
		PoolsDiscovered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pools_discovered_total",
			Help:      "Pool creation events decoded",
		}, []string{"protocol"}),
		TokensEnriched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "tokens_resolved_total",
			Help:      "Tokens resolved through multicall",
		}),
		EnrichmentFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "failures_total",
			Help:      "Batches whose enrichment call failed",
		}),
		LogsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "logs_dropped_total",
			Help:      "Logs skipped by the engine, by reason",
		}, []string{"reason"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "batch_duration_seconds",
			Help:      "Time to process, write and checkpoint one batch",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		CurrentBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "current_block",
			Help:      "Last block written to the sink",
		}),
		HeadBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "head_block",
			Help:      "Last known upstream head",
		}),
	}
}
