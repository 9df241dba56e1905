package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EmbeddingRequestsTotal counts Embed calls by model and status.
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Embed calls by model and outcome.",
	}, []string{"model", "status"})

	// EmbeddingRequestDuration is per-chunk embedding latency. Log-mel runs
	// in-process, so buckets start at half a millisecond.
	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "request_duration_seconds",
		Help:      "Time to embed one chunk.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2.5, 8),
	}, []string{"model"})

	// EmbeddingSamplesTotal counts PCM samples fed to the embedder.
	EmbeddingSamplesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "samples_total",
		Help:      "Audio samples passed to the embedder.",
	}, []string{"model"})

	// EmbeddingCacheTotal counts cache lookups; result is "hit" or "miss".
	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "embedding",
		Name:      "cache_total",
		Help:      "Embedding cache lookups by result.",
	}, []string{"result"})
)

var embeddingGroup = group{collectors: []prometheus.Collector{
	EmbeddingRequestsTotal,
	EmbeddingRequestDuration,
	EmbeddingSamplesTotal,
	EmbeddingCacheTotal,
}}

// RegisterEmbeddingMetrics registers the embedder and cache collectors.
func RegisterEmbeddingMetrics() { embeddingGroup.register() }
