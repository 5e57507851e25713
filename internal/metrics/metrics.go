// Package metrics defines the Prometheus collectors shared by the sync
// pipeline and the reporting server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kcsync"

// Metrics bundles the process collectors. Collectors are registered on
// construction; create one Metrics per registry.
type Metrics struct {
	// EmbeddingCacheTotal counts embedding cache lookups by result (hit, miss).
	EmbeddingCacheTotal *prometheus.CounterVec

	// SyncItemsTotal counts documents by outcome (action, status).
	SyncItemsTotal *prometheus.CounterVec

	// SyncBatchDuration observes wall time per sync batch.
	SyncBatchDuration prometheus.Histogram

	// ChunksWritten counts chunks upserted into the vector store.
	ChunksWritten prometheus.Counter
}

// New registers the collectors on reg and returns them. Passing
// prometheus.DefaultRegisterer wires the default /metrics endpoint.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EmbeddingCacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),

		SyncItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_items_total",
			Help:      "Synced documents by action and status.",
		}, []string{"action", "status"}),

		SyncBatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_batch_duration_seconds",
			Help:      "Wall time per sync batch.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		ChunksWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_written_total",
			Help:      "Chunks upserted into the vector store.",
		}),
	}
}
