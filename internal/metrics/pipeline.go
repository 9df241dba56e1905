package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SegmentDocumentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "documents_total",
		Help:      "Root documents processed by the segmenter.",
	}, []string{"status"})

	SegmentChunksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "segment",
		Name:      "chunks_total",
		Help:      "Chunks produced by the segmenter.",
	})

	// DecodeDuration covers fetching the uri and decoding it to mono PCM.
	DecodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "decode_duration_seconds",
		Help:      "Time to fetch and decode one audio source.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// RankMatchesTotal: kind "chunk" counts matches read, "parent" counts matches written.
	RankMatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rank",
		Name:      "matches_total",
		Help:      "Chunk matches consumed and parent matches produced by the ranker.",
	}, []string{"kind"})

	PipelineOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "operations_total",
		Help:      "Index and search requests by outcome.",
	}, []string{"operation", "status"})

	PipelineOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "operation_duration_seconds",
		Help:      "End-to-end duration of index and search requests.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
)

var pipelineGroup = group{collectors: []prometheus.Collector{
	SegmentDocumentsTotal,
	SegmentChunksTotal,
	DecodeDuration,
	RankMatchesTotal,
	PipelineOperationsTotal,
	PipelineOperationDuration,
}}

// RegisterPipelineMetrics registers segmenter, ranker and pipeline collectors.
func RegisterPipelineMetrics() { pipelineGroup.register() }
