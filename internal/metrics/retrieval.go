package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	RetrievalStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_stage_duration_seconds",
			Help:      "Duration of hybrid retrieval stages in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "stage"}, // stage: embed, prefetch, rerank
	)

	RetrievalCandidates = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates",
			Help:      "Number of candidates surviving each retrieval stage",
			Buckets:   []float64{0, 1, 3, 5, 10, 15, 20, 40},
		},
		[]string{"backend", "stage"},
	)

	RetrievalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Total retrieval failures",
		},
		[]string{"backend", "stage"},
	)

	RetrievalDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_dropped_total",
			Help:      "Reranked candidates dropped for a non-positive late-interaction score",
		},
		[]string{"backend"},
	)

	RetrievalSparseTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_sparse_truncated_total",
			Help:      "Sparse queries whose tag matches exceeded the scan bound",
		},
	)
)
