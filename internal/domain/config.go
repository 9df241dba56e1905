package domain

// Well-known tag keys written by the segmenter and read by the ranker.
const (
	TagSampleRate = "sample_rate"
	TagBegInMs    = "beg_in_ms"
	TagEndInMs    = "end_in_ms"
)

// PipelineDefaults holds the default knobs shared by the segmenter, ranker and decoder.
// Components receive these values explicitly at construction.
type PipelineDefaults struct {
	ChunkDuration    float64
	ChunkStride      float64
	TargetSampleRate int
	Metric           string
	Ranking          string
	TopK             int
}

// DefaultPipelineConfig returns 1 s windows with a 1 s hop over 16 kHz mono audio,
// ranked by ascending cosine distance.
func DefaultPipelineConfig() PipelineDefaults {
	return PipelineDefaults{
		ChunkDuration:    1.0,
		ChunkStride:      1.0,
		TargetSampleRate: 16000,
		Metric:           "cosine",
		Ranking:          "min",
		TopK:             10,
	}
}
