// Package metrics exposes Prometheus collectors for the retrieval pipeline and the HTTP layer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Name:      "retrieval_requests_total",
			Help:      "Total number of retrieval requests by mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: single/multi
	)

	RetrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieval duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	DocumentSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Name:      "document_searches_total",
			Help:      "Per-document pipeline executions by status",
		},
		[]string{"status"}, // ok/failed/timeout
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragd",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual retrieval stages in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"}, // embed/vector/keyword/lookup/rerank
	)

	RerankBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Name:      "rerank_batches_total",
			Help:      "Cross-encoder oracle batch calls by status",
		},
		[]string{"status"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragd",
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalDuration)
	prometheus.MustRegister(DocumentSearchesTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RerankBatchesTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
}
